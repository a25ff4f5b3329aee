package asset_test

import (
	"math/big"
	"testing"

	"github.com/fd1az/chswap-kiosk/internal/asset"
)

func TestToUnits(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals uint8
		want     string
	}{
		{"usdc fraction", "1.5", 6, "1500000"},
		{"usdc whole", "25", 6, "25000000"},
		{"chp whole", "10", 0, "10"},
		{"leading point", ".5", 6, "500000"},
		{"trailing point", "5.", 0, "5"},
		{"surrounding space", " 2 ", 0, "2"},
		{"smallest unit", "0.000001", 6, "1"},
		{"rounds half up", "1.0000005", 6, "1000001"},
		{"rounds down below half", "1.0000004", 6, "1000000"},
		{"chp fraction rounds", "10.5", 0, "11"},
		{"large value", "123456789012345678901234567890", 6, "123456789012345678901234567890000000"},
		{"zero", "0", 6, "0"},
		{"empty", "", 6, "0"},
		{"lone point", ".", 6, "0"},
		{"letters", "abc", 6, "0"},
		{"two points", "1.2.3", 6, "0"},
		{"negative", "-1", 6, "0"},
		{"explicit plus", "+1", 6, "0"},
		{"exponent", "1e3", 6, "0"},
		{"thousands separator", "1,000", 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asset.ToUnits(tt.in, tt.decimals)
			if got.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.String())
			}
		})
	}
}

func TestFromUnits(t *testing.T) {
	tests := []struct {
		raw      int64
		decimals uint8
		want     string
	}{
		{1500000, 6, "1.5"},
		{1000000, 6, "1"},
		{1, 6, "0.000001"},
		{0, 6, "0"},
		{10, 0, "10"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := asset.FromUnits(big.NewInt(tt.raw), tt.decimals); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if got := asset.FromUnits(nil, 6); got != "0" {
		t.Errorf("expected 0 for nil, got %s", got)
	}
}

func TestFromUnits_RoundTrips(t *testing.T) {
	values := []string{"0", "1", "7", "999999", "1000000", "123456789", "340282366920938463463374607431768211455"}

	for _, d := range []uint8{0, 6, 18} {
		for _, v := range values {
			x, _ := new(big.Int).SetString(v, 10)
			back := asset.ToUnits(asset.FromUnits(x, d), d)
			if back.Cmp(x) != 0 {
				t.Errorf("decimals %d: %s round-tripped to %s", d, v, back)
			}
		}
	}
}

func TestFromUnits_NegativeDoesNotRoundTrip(t *testing.T) {
	x := big.NewInt(-5)

	s := asset.FromUnits(x, 2)
	if s != "-0.05" {
		t.Fatalf("expected -0.05, got %s", s)
	}
	if back := asset.ToUnits(s, 2); back.Sign() != 0 {
		t.Errorf("expected signed input to parse as zero, got %s", back)
	}
}

func TestValidAmount(t *testing.T) {
	valid := []string{"1", "1.5", ".5", "5.", "0"}
	invalid := []string{"", ".", "-1", "1e3", "abc", "1.2.3"}

	for _, s := range valid {
		if !asset.ValidAmount(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if asset.ValidAmount(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56789012", "1234.567"},
		{"1234567.9", "1234567"},
		{"0.5", "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := asset.Truncate(tt.in, 8); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
