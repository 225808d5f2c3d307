package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errTestUserNotFound = errors.New("user not found")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) *redis.Client {
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
	return client
}

func mintToken() (string, string, error) {
	tok, err := internal.NewOpaqueToken()
	if err != nil {
		return "", "", err
	}
	return tok.Raw, tok.LookupID, nil
}

func fakeAccess(_ context.Context, userID string, now time.Time) (string, time.Time, error) {
	return "access-" + userID, now.Add(15 * time.Minute), nil
}

func newSessionDeps(t *testing.T) (IssueDeps, RotateDeps, *redisstore.RefreshStore, *testClock) {
	t.Helper()

	store := redisstore.NewRefreshStore(newTestRedis(t), "test", time.Hour)
	clock := newTestClock()

	issue := IssueDeps{
		Store:       store,
		Now:         clock.Now,
		RefreshTTL:  time.Hour,
		NewToken:    mintToken,
		NewFamilyID: internal.NewFamilyID,
		IssueAccess: fakeAccess,
	}
	rotate := RotateDeps{
		Store:       store,
		Now:         clock.Now,
		RefreshTTL:  time.Hour,
		Resolve:     internal.LookupID,
		NewToken:    mintToken,
		IssueAccess: fakeAccess,
	}
	return issue, rotate, store, clock
}
