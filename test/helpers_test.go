//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/redisstore"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIntegrationRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newIntegrationStore(t *testing.T, retention time.Duration) (*redisstore.RefreshStore, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newIntegrationRedis(t)
	return redisstore.NewRefreshStore(rdb, "it", retention), mr
}

func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient) *goSession.Engine {
	t.Helper()

	priv, pub, err := jwt.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("GenerateEd25519PEM failed: %v", err)
	}
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Session.RefreshTTL = time.Hour
	cfg.PasswordReset.Enabled = false

	engine, err := goSession.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func makeRecord(tokenID, familyID, userID string, ttl time.Duration) *refresh.Record {
	now := time.Now()
	return &refresh.Record{
		TokenID:   tokenID,
		FamilyID:  familyID,
		UserID:    userID,
		Status:    refresh.StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
