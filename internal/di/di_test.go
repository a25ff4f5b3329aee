package di_test

import (
	"testing"

	"github.com/fd1az/chswap-kiosk/internal/di"
)

type greeter struct{ name string }

func TestRegisterToken_BuildsOnceOnFirstGet(t *testing.T) {
	c := di.NewContainer()
	tok := di.NewToken[*greeter]("test:greeter")

	builds := 0
	di.RegisterToken(c, tok, func(sr di.ServiceRegistry) *greeter {
		builds++
		return &greeter{name: sr.Get("name").(string)}
	})
	c.Register("name", "kiosk")

	if builds != 0 {
		t.Fatalf("expected lazy build, got %d builds", builds)
	}

	first := di.GetToken(c, tok)
	second := di.GetToken(c, tok)

	if builds != 1 {
		t.Errorf("expected 1 build, got %d", builds)
	}
	if first != second {
		t.Error("expected the same instance")
	}
	if first.name != "kiosk" {
		t.Errorf("expected kiosk, got %s", first.name)
	}
}

func TestGet_UnknownServicePanics(t *testing.T) {
	c := di.NewContainer()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}

func TestGetToken_WrongTypePanics(t *testing.T) {
	c := di.NewContainer()
	c.Register("test:greeter", 42)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for mistyped service")
		}
	}()
	di.GetToken(c, di.NewToken[*greeter]("test:greeter"))
}
