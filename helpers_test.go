package goSession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

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

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func testConfig(t *testing.T) Config {
	t.Helper()

	priv, pub, err := jwt.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("GenerateEd25519PEM failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Session.RefreshTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.ExposeToken = true
	cfg.Metrics.Enabled = true
	return cfg
}

type testUser struct {
	record UserRecord
	hash   string
}

type mockDirectory struct {
	mu     sync.Mutex
	hasher *password.Argon2
	users  map[string]*testUser
	logins map[string]time.Time
}

func newMockDirectory(t *testing.T) *mockDirectory {
	t.Helper()

	d := &mockDirectory{
		hasher: newTestHasher(t),
		users:  map[string]*testUser{},
		logins: map[string]time.Time{},
	}
	d.add(t, UserRecord{UserID: "1", Username: "alice", Email: "alice@example.com", IsActive: true}, "correct-password-123")
	d.add(t, UserRecord{UserID: "2", Username: "bob", Email: "bob@example.com", IsActive: true, IsStaff: true}, "bob-password-123")
	d.add(t, UserRecord{UserID: "3", Username: "carol", Email: "carol@example.com", IsActive: false}, "carol-password-123")
	return d
}

func (d *mockDirectory) add(t *testing.T, rec UserRecord, plain string) {
	t.Helper()
	hash, err := d.hasher.Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	d.users[rec.UserID] = &testUser{record: rec, hash: hash}
}

func (d *mockDirectory) find(match func(UserRecord) bool) (*testUser, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if match(u.record) {
			return u, true
		}
	}
	return nil, false
}

func (d *mockDirectory) VerifyCredentials(_ context.Context, username, plain string) (UserRecord, error) {
	u, ok := d.find(func(r UserRecord) bool { return r.Username == username })
	if !ok {
		return UserRecord{}, ErrInvalidCredentials
	}
	d.mu.Lock()
	hash := u.hash
	d.mu.Unlock()
	match, err := d.hasher.Verify(plain, hash)
	if err != nil || !match {
		return UserRecord{}, ErrInvalidCredentials
	}
	return u.record, nil
}

func (d *mockDirectory) UserByID(_ context.Context, userID string) (UserRecord, error) {
	u, ok := d.find(func(r UserRecord) bool { return r.UserID == userID })
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u.record, nil
}

func (d *mockDirectory) UserByEmail(_ context.Context, email string) (UserRecord, error) {
	u, ok := d.find(func(r UserRecord) bool { return r.Email == email })
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u.record, nil
}

func (d *mockDirectory) UserByUsername(_ context.Context, username string) (UserRecord, error) {
	u, ok := d.find(func(r UserRecord) bool { return r.Username == username })
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u.record, nil
}

func (d *mockDirectory) SetPasswordHash(_ context.Context, userID, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.hash = hash
	return nil
}

func (d *mockDirectory) TouchLogin(_ context.Context, userID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logins[userID] = at
	return nil
}

func (d *mockDirectory) setActive(userID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID].record.IsActive = active
}

// remove drops userID and returns a func that puts it back.
func (d *mockDirectory) remove(userID string) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.users[userID]
	delete(d.users, userID)
	return func() {
		d.mu.Lock()
		d.users[userID] = u
		d.mu.Unlock()
	}
}

func (d *mockDirectory) hashOf(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[userID].hash
}

type captureDelivery struct {
	mu      sync.Mutex
	notices []ResetNotice
}

func (c *captureDelivery) DeliverResetToken(_ context.Context, n ResetNotice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	return nil
}

func (c *captureDelivery) last() (ResetNotice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return ResetNotice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

type testEngine struct {
	*Engine
	dir      *mockDirectory
	delivery *captureDelivery
	clock    *testClock
	rdb      *redis.Client
}

func newTestEngine(t *testing.T, mutate func(*Config), extra ...func(*Builder)) *testEngine {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	dir := newMockDirectory(t)
	delivery := &captureDelivery{}
	clock := newTestClock()

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(dir).
		WithResetDelivery(delivery).
		WithClock(clock.Now)
	for _, fn := range extra {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, dir: dir, delivery: delivery, clock: clock, rdb: rdb}
}
