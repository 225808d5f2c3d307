package goSession

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid without keys, got %v", err)
	}
}

func TestTestConfigIsValid(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"access not shorter than refresh", func(c *Config) { c.JWT.AccessTTL = c.Session.RefreshTTL }},
		{"unknown signing method", func(c *Config) { c.JWT.SigningMethod = "none" }},
		{"short hs256 secret", func(c *Config) {
			c.JWT.SigningMethod = "hs256"
			c.JWT.PrivateKey = []byte("short")
		}},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = time.Hour }},
		{"zero refresh ttl", func(c *Config) { c.Session.RefreshTTL = 0 }},
		{"negative retention", func(c *Config) { c.Session.RetentionTTL = -time.Second }},
		{"prefix whitespace", func(c *Config) { c.Session.RedisPrefix = "gs prod" }},
		{"prefix braces", func(c *Config) { c.Session.RedisPrefix = "{gs}" }},
		{"argon memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"argon time", func(c *Config) { c.Password.Time = 0 }},
		{"salt length", func(c *Config) { c.Password.SaltLength = 8 }},
		{"length bounds", func(c *Config) { c.Password.MaxLength = c.Password.MinLength - 1 }},
		{"reset ttl zero", func(c *Config) { c.PasswordReset.ResetTTL = 0 }},
		{"reset ttl too long", func(c *Config) { c.PasswordReset.ResetTTL = 48 * time.Hour }},
		{"audit buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig(t)).Build()
	if err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithConfig(testConfig(t)).WithRedis(rdb)

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestConfigIsCopied(t *testing.T) {
	cfg := testConfig(t)
	_, rdb := newTestRedis(t)

	e, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	cfg.JWT.PrivateKey[0] ^= 0xff
	cfg.Session.RefreshTTL = time.Second

	got := e.Config()
	if got.Session.RefreshTTL != time.Hour {
		t.Fatalf("engine config mutated: %v", got.Session.RefreshTTL)
	}
	if got.JWT.PrivateKey[0] == cfg.JWT.PrivateKey[0] {
		t.Fatal("engine shares key bytes with caller")
	}
}

func TestIssueWithoutDirectory(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig(t)
	cfg.PasswordReset.Enabled = false

	e, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	p, err := e.Issue(t.Context(), "42")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	res, err := e.ValidateAccess(p.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if res.UserID != "42" || res.Username != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
