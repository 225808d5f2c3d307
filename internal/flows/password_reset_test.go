package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/redisstore"
)

type fakeDirectory struct {
	users  map[string]ResetUser
	hashes map[string]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[string]ResetUser{
			"ana": {UserID: "1", Username: "ana", Email: "ana@example.com"},
			"bob": {UserID: "2", Username: "bob", Email: "bob@example.com"},
		},
		hashes: map[string]string{},
	}
}

func (d *fakeDirectory) byEmail(_ context.Context, email string) (ResetUser, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return ResetUser{}, errTestUserNotFound
}

func (d *fakeDirectory) byUsername(_ context.Context, username string) (ResetUser, error) {
	u, ok := d.users[username]
	if !ok {
		return ResetUser{}, errTestUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) setHash(_ context.Context, userID, hash string) error {
	d.hashes[userID] = hash
	return nil
}

func isTestUserNotFound(err error) bool {
	return errors.Is(err, errTestUserNotFound)
}

func newResetDeps(t *testing.T) (ResetRequestDeps, ResetConfirmDeps, *fakeDirectory, *[]ResetNotice, *int) {
	t.Helper()

	store := redisstore.NewResetStore(newTestRedis(t), "test", time.Hour)
	dir := newFakeDirectory()
	clock := newTestClock()
	var delivered []ResetNotice
	revoked := 0

	request := ResetRequestDeps{
		TTL:             5 * time.Minute,
		Now:             clock.Now,
		FindUserByEmail: dir.byEmail,
		IsUserNotFound:  isTestUserNotFound,
		NewToken:        mintToken,
		Store:           store,
		Deliver: func(_ context.Context, n ResetNotice) error {
			delivered = append(delivered, n)
			return nil
		},
	}
	confirm := ResetConfirmDeps{
		Now:                clock.Now,
		Resolve:            internal.LookupID,
		FindUserByUsername: dir.byUsername,
		IsUserNotFound:     isTestUserNotFound,
		CheckPolicy: func(p string) error {
			if len(p) < 8 {
				return errors.New("too short")
			}
			return nil
		},
		HashPassword:    func(p string) (string, error) { return "hash:" + p, nil },
		Store:           store,
		SetPasswordHash: dir.setHash,
		RevokeSessions:  true,
		RevokeAllForUser: func(context.Context, string) (int, error) {
			revoked++
			return 1, nil
		},
	}
	return request, confirm, dir, &delivered, &revoked
}

func TestResetRequestAndConfirmOnce(t *testing.T) {
	request, confirm, dir, delivered, revoked := newResetDeps(t)
	ctx := context.Background()

	req := RunRequestReset(ctx, "ana@example.com", request)
	if req.Failure != ResetFailureNone {
		t.Fatalf("request failed: %v", req.Err)
	}
	if len(*delivered) != 1 || (*delivered)[0].Token != req.Token {
		t.Fatalf("expected token to be delivered once")
	}

	res := RunConfirmReset(ctx, req.Token, "ana", "first-new-password", confirm)
	if res.Failure != ResetFailureNone {
		t.Fatalf("confirm failed: kind=%d err=%v", res.Failure, res.Err)
	}
	if dir.hashes["1"] != "hash:first-new-password" || *revoked != 1 {
		t.Fatalf("expected hash update and session revocation")
	}

	again := RunConfirmReset(ctx, req.Token, "ana", "second-new-password", confirm)
	if again.Failure != ResetFailureInvalid || again.Reason != "used" {
		t.Fatalf("expected used token, got kind=%d reason=%q", again.Failure, again.Reason)
	}
	if dir.hashes["1"] != "hash:first-new-password" {
		t.Fatalf("second redemption must not change the hash")
	}
}

func TestResetRequestUnknownEmail(t *testing.T) {
	request, _, _, delivered, _ := newResetDeps(t)

	res := RunRequestReset(context.Background(), "nobody@example.com", request)
	if res.Failure != ResetFailureUnknownUser {
		t.Fatalf("expected unknown user, got %d", res.Failure)
	}
	if len(*delivered) != 0 {
		t.Fatalf("nothing should be delivered for unknown users")
	}
}

func TestResetConfirmMismatchKeepsTokenUsable(t *testing.T) {
	request, confirm, dir, _, _ := newResetDeps(t)
	ctx := context.Background()

	req := RunRequestReset(ctx, "ana@example.com", request)

	res := RunConfirmReset(ctx, req.Token, "bob", "another-password", confirm)
	if res.Failure != ResetFailureInvalid || res.Reason != "user_mismatch" {
		t.Fatalf("expected mismatch, got kind=%d reason=%q", res.Failure, res.Reason)
	}
	if _, ok := dir.hashes["2"]; ok {
		t.Fatalf("mismatched user must not be updated")
	}

	ok := RunConfirmReset(ctx, req.Token, "ana", "another-password", confirm)
	if ok.Failure != ResetFailureNone {
		t.Fatalf("owner should still redeem, got kind=%d err=%v", ok.Failure, ok.Err)
	}
}

func TestResetConfirmWeakPasswordKeepsTokenUsable(t *testing.T) {
	request, confirm, _, _, _ := newResetDeps(t)
	ctx := context.Background()

	req := RunRequestReset(ctx, "ana@example.com", request)

	if res := RunConfirmReset(ctx, req.Token, "ana", "short", confirm); res.Failure != ResetFailurePolicy {
		t.Fatalf("expected policy failure, got %d", res.Failure)
	}
	if res := RunConfirmReset(ctx, req.Token, "ana", "long-enough-password", confirm); res.Failure != ResetFailureNone {
		t.Fatalf("expected success after policy failure, got kind=%d err=%v", res.Failure, res.Err)
	}
}

func TestResetConfirmExpired(t *testing.T) {
	request, confirm, _, _, _ := newResetDeps(t)
	ctx := context.Background()

	req := RunRequestReset(ctx, "ana@example.com", request)

	confirm.Now = func() time.Time { return req.ExpiresAt.Add(time.Second) }
	res := RunConfirmReset(ctx, req.Token, "ana", "long-enough-password", confirm)
	if res.Failure != ResetFailureInvalid || res.Reason != "expired" {
		t.Fatalf("expected expired, got kind=%d reason=%q", res.Failure, res.Reason)
	}
}

func TestResetConfirmWithoutRevocation(t *testing.T) {
	request, confirm, _, _, revoked := newResetDeps(t)
	ctx := context.Background()
	confirm.RevokeSessions = false

	req := RunRequestReset(ctx, "ana@example.com", request)
	if res := RunConfirmReset(ctx, req.Token, "ana", "long-enough-password", confirm); res.Failure != ResetFailureNone {
		t.Fatalf("confirm failed: %v", res.Err)
	}
	if *revoked != 0 {
		t.Fatalf("sessions must be kept when revocation is disabled")
	}
}

func TestResetConfirmMalformedAndUnknownUser(t *testing.T) {
	_, confirm, _, _, _ := newResetDeps(t)
	ctx := context.Background()

	if res := RunConfirmReset(ctx, "garbage", "ana", "long-enough-password", confirm); res.Reason != "malformed" {
		t.Fatalf("expected malformed, got %q", res.Reason)
	}

	raw, _, _ := mintToken()
	if res := RunConfirmReset(ctx, raw, "nobody", "long-enough-password", confirm); res.Reason != "unknown_user" {
		t.Fatalf("expected unknown_user, got %q", res.Reason)
	}
	if res := RunConfirmReset(ctx, raw, "ana", "long-enough-password", confirm); res.Reason != "not_found" {
		t.Fatalf("expected not_found, got %q", res.Reason)
	}
}
