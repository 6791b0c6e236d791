package auth

import (
	"errors"
	"testing"

	"github.com/pquerna/otp/totp"
)

func newSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "marketsim", AccountName: "admin"})
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	return key.Secret()
}

func TestGuardDisabled(t *testing.T) {
	g := New("")
	if g.Enabled() {
		t.Fatal("empty secret should disable the guard")
	}
	if err := g.Verify(""); err != nil {
		t.Errorf("disabled guard rejected empty code: %v", err)
	}
	if err := g.Verify("000000"); err != nil {
		t.Errorf("disabled guard rejected a code: %v", err)
	}
}

func TestGuardVerify(t *testing.T) {
	secret := newSecret(t)
	g := New(secret)
	if !g.Enabled() {
		t.Fatal("guard with secret should be enabled")
	}

	code, err := GenerateCode(secret)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := g.Verify(code); err != nil {
		t.Errorf("valid code rejected: %v", err)
	}

	if err := g.Verify(""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty code: %v, want ErrUnauthorized", err)
	}
	if err := g.Verify("000000"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bogus code: %v, want ErrUnauthorized", err)
	}
}
