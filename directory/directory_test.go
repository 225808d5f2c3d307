package directory

import (
	"context"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T, cfg password.Config) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(cfg)
	require.NoError(t, err)
	return h
}

func fastConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestDirectory(t *testing.T, opts Options) *Directory {
	t.Helper()
	dir, err := Open(":memory:", testHasher(t, fastConfig()), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })
	return dir
}

func TestRegisterAndLookup(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "Alice@Example.com", "correct-horse-battery")
	require.NoError(t, err)
	require.NotEmpty(t, rec.UserID)
	require.True(t, rec.IsActive)
	require.False(t, rec.IsStaff)
	require.Equal(t, "alice@example.com", rec.Email)

	byID, err := dir.UserByID(ctx, rec.UserID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	byEmail, err := dir.UserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, rec.UserID, byEmail.UserID)

	byName, err := dir.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, rec.UserID, byName.UserID)

	_, err = dir.UserByID(ctx, "999")
	require.ErrorIs(t, err, goSession.ErrUserNotFound)
	_, err = dir.UserByID(ctx, "not-a-number")
	require.ErrorIs(t, err, goSession.ErrUserNotFound)
	_, err = dir.UserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestRegisterRejects(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	_, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)

	_, err = dir.Register(ctx, "alice", "other@example.com", "correct-horse-battery")
	require.ErrorIs(t, err, goSession.ErrAccountExists)

	_, err = dir.Register(ctx, "alice2", "alice@example.com", "correct-horse-battery")
	require.ErrorIs(t, err, goSession.ErrAccountExists)

	_, err = dir.Register(ctx, "bob", "bob@example.com", "short")
	require.ErrorIs(t, err, goSession.ErrPasswordPolicy)

	_, err = dir.Register(ctx, "", "x@example.com", "correct-horse-battery")
	require.Error(t, err)
}

func TestVerifyCredentials(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)

	got, err := dir.VerifyCredentials(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	require.Equal(t, rec.UserID, got.UserID)

	_, err = dir.VerifyCredentials(ctx, "alice", "wrong-password")
	require.ErrorIs(t, err, goSession.ErrInvalidCredentials)

	_, err = dir.VerifyCredentials(ctx, "ghost", "correct-horse-battery")
	require.ErrorIs(t, err, goSession.ErrInvalidCredentials)
}

func TestSetPasswordHash(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)

	hash, err := dir.hasher.Hash("a-brand-new-password")
	require.NoError(t, err)
	require.NoError(t, dir.SetPasswordHash(ctx, rec.UserID, hash))

	_, err = dir.VerifyCredentials(ctx, "alice", "correct-horse-battery")
	require.ErrorIs(t, err, goSession.ErrInvalidCredentials)
	_, err = dir.VerifyCredentials(ctx, "alice", "a-brand-new-password")
	require.NoError(t, err)

	require.ErrorIs(t, dir.SetPasswordHash(ctx, "12345", hash), goSession.ErrUserNotFound)
}

func TestTouchLoginAndFlags(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)
	require.True(t, rec.LastLogin.IsZero())

	at := time.Now().Truncate(time.Second)
	require.NoError(t, dir.TouchLogin(ctx, rec.UserID, at))
	require.NoError(t, dir.SetStaff(ctx, rec.UserID, true))
	require.NoError(t, dir.SetActive(ctx, rec.UserID, false))

	got, err := dir.UserByID(ctx, rec.UserID)
	require.NoError(t, err)
	require.True(t, got.LastLogin.Equal(at))
	require.True(t, got.IsStaff)
	require.False(t, got.IsActive)
}

func TestUpdateProfile(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	alice, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)
	_, err = dir.Register(ctx, "bob", "bob@example.com", "correct-horse-battery")
	require.NoError(t, err)

	first, country, email := "Alice", "  NZ ", "Alice.New@Example.com"
	got, err := dir.UpdateProfile(ctx, alice.UserID, goSession.ProfileUpdate{FirstName: &first, Country: &country, Email: &email})
	require.NoError(t, err)
	require.Equal(t, "Alice", got.FirstName)
	require.Equal(t, "NZ", got.Country)
	require.Equal(t, "alice.new@example.com", got.Email)
	require.Equal(t, "alice", got.Username)

	taken := "bob"
	_, err = dir.UpdateProfile(ctx, alice.UserID, goSession.ProfileUpdate{Username: &taken})
	require.ErrorIs(t, err, goSession.ErrAccountExists)

	blank := " "
	_, err = dir.UpdateProfile(ctx, alice.UserID, goSession.ProfileUpdate{Username: &blank})
	require.ErrorIs(t, err, goSession.ErrInvalidProfile)

	same, err := dir.UpdateProfile(ctx, alice.UserID, goSession.ProfileUpdate{})
	require.NoError(t, err)
	require.Equal(t, "Alice", same.FirstName)

	_, err = dir.UpdateProfile(ctx, "9999", goSession.ProfileUpdate{FirstName: &first})
	require.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestDelete(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, rec.UserID))
	_, err = dir.UserByID(ctx, rec.UserID)
	require.ErrorIs(t, err, goSession.ErrUserNotFound)
	require.ErrorIs(t, dir.Delete(ctx, rec.UserID), goSession.ErrUserNotFound)

	_, err = dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err, "a deleted username is free again")
}

func TestUpgradeOnLogin(t *testing.T) {
	weak := fastConfig()
	dir := newTestDirectory(t, Options{UpgradeOnLogin: true})
	ctx := context.Background()

	rec, err := dir.Register(ctx, "alice", "alice@example.com", "correct-horse-battery")
	require.NoError(t, err)

	// Reopen the same rows with stronger parameters.
	strong := weak
	strong.Time = 2
	upgraded, err := New(dir.DB(), testHasher(t, strong), Options{UpgradeOnLogin: true})
	require.NoError(t, err)

	before := storedHash(t, dir, rec.UserID)
	_, err = upgraded.VerifyCredentials(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	after := storedHash(t, dir, rec.UserID)

	require.NotEqual(t, before, after)
	stale, err := upgraded.hasher.NeedsUpgrade(after)
	require.NoError(t, err)
	require.False(t, stale)
}

func storedHash(t *testing.T, dir *Directory, userID string) string {
	t.Helper()
	id, ok := parseID(userID)
	require.True(t, ok)
	var user User
	require.NoError(t, dir.DB().First(&user, id).Error)
	return user.PasswordHash
}

func TestPing(t *testing.T) {
	dir := newTestDirectory(t, Options{})
	require.NoError(t, dir.Ping(context.Background()))
}

func TestDialectorFor(t *testing.T) {
	require.Equal(t, "postgres", dialectorFor("postgres://u:p@localhost/db").Name())
	require.Equal(t, "postgres", dialectorFor("host=localhost user=u dbname=db").Name())
	require.Equal(t, "sqlite", dialectorFor(":memory:").Name())
	require.Equal(t, "sqlite", dialectorFor("/var/lib/gosession/users.db").Name())
}
