package redisstore

import (
	"testing"
	"time"

	"github.com/MrEthical07/goSession/refresh"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func activeRecord(tokenID, familyID, userID string, now time.Time) *refresh.Record {
	return &refresh.Record{
		TokenID:   tokenID,
		FamilyID:  familyID,
		UserID:    userID,
		Status:    refresh.StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}
