package test

import (
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
)

func TestDefaultConfigPresetValidatesWithKeys(t *testing.T) {
	cfg := goSession.DefaultConfig()

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %s", cfg.JWT.AccessTTL)
	}
	if cfg.Session.RetentionTTL <= 0 {
		t.Fatal("expected refresh records to be retained past expiry")
	}
	if !cfg.PasswordReset.RevokeSessions || cfg.PasswordReset.ExposeToken {
		t.Fatal("expected reset to revoke sessions and hide the token by default")
	}
	if len(cfg.JWT.PrivateKey) != 0 {
		t.Fatal("expected preset to leave keys unset")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected preset without keys to be rejected")
	}

	priv, pub, err := jwt.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("GenerateEd25519PEM failed: %v", err)
	}
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected preset with keys to validate, got %v", err)
	}
}

func TestConfigRejectsSharedSecretThatIsTooShort(t *testing.T) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("short")

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}
