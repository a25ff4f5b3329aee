package domain_test

import (
	"math/big"
	"testing"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
)

func TestRequiredAllowance(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		input     int64
		fee       int64
		want      int64
	}{
		{"buy ignores fee", domain.DirectionBuy, 1000, 20, 1000},
		{"sell adds fee", domain.DirectionSell, 1000, 10, 1010},
		{"sell with zero fee", domain.DirectionSell, 50, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.RequiredAllowance(tt.direction, big.NewInt(tt.input), big.NewInt(tt.fee))
			if got.Int64() != tt.want {
				t.Errorf("expected %d, got %s", tt.want, got)
			}
		})
	}
}

func TestInputFee(t *testing.T) {
	if got := domain.InputFee(domain.DirectionSell, big.NewInt(1000)); got.Int64() != 10 {
		t.Errorf("sell: expected 10, got %s", got)
	}
	if got := domain.InputFee(domain.DirectionBuy, big.NewInt(1000)); got.Sign() != 0 {
		t.Errorf("buy: expected 0, got %s", got)
	}
}

func TestNeedsAuthorization(t *testing.T) {
	tests := []struct {
		name     string
		granted  *big.Int
		required *big.Int
		want     bool
	}{
		{"exactly equal is sufficient", big.NewInt(1010), big.NewInt(1010), false},
		{"one short", big.NewInt(1009), big.NewInt(1010), true},
		{"more than enough", big.NewInt(5000), big.NewInt(1010), false},
		{"unknown grant counts as zero", nil, big.NewInt(1), true},
		{"nothing required", nil, big.NewInt(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.NeedsAuthorization(tt.granted, tt.required); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPlanAction(t *testing.T) {
	tests := []struct {
		name       string
		direction  domain.Direction
		input      int64
		granted    *big.Int
		wantKind   domain.Kind
		wantAmount int64
	}{
		{"sell with allowance exchanges", domain.DirectionSell, 1000, big.NewInt(1010), domain.KindExchange, 1000},
		{"sell short authorizes fee too", domain.DirectionSell, 1000, big.NewInt(1000), domain.KindAuthorize, 1010},
		{"buy without allowance authorizes input", domain.DirectionBuy, 2_500_000, nil, domain.KindAuthorize, 2_500_000},
		{"buy with allowance exchanges", domain.DirectionBuy, 2_500_000, big.NewInt(2_500_000), domain.KindExchange, 2_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := domain.PlanAction(tt.direction, big.NewInt(tt.input), tt.granted)
			if action.Kind != tt.wantKind {
				t.Errorf("kind: expected %s, got %s", tt.wantKind, action.Kind)
			}
			if action.Amount.Int64() != tt.wantAmount {
				t.Errorf("amount: expected %d, got %s", tt.wantAmount, action.Amount)
			}
		})
	}
}

func TestAllowanceState_NeedsAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		input     int64
		granted   int64
		want      bool
	}{
		{"sell short by fee", domain.DirectionSell, 1000, 1000, true},
		{"sell covers fee", domain.DirectionSell, 1000, 1010, false},
		{"buy exact", domain.DirectionBuy, 1000, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.NewAllowanceState(tt.direction, big.NewInt(tt.input), big.NewInt(tt.granted))
			if got := s.NeedsAuthorization(); got != tt.want {
				t.Errorf("expected %v, got %v (required %s)", tt.want, got, s.Required)
			}
		})
	}
}
