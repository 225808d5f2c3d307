package flows

import (
	"context"
	"time"
)

// TokenMinter creates opaque tokens. Raw is handed to the client and LookupID
// is what gets stored.
type TokenMinter func() (raw, lookupID string, err error)

// TokenResolver maps a raw token to its storage id.
type TokenResolver func(raw string) (string, error)

// AccessIssuer signs an access token for userID.
type AccessIssuer func(ctx context.Context, userID string, now time.Time) (token string, expiresAt time.Time, err error)

// Deps groups flow dependency sets. The Engine builds this once at Build time.
type Deps struct {
	Issue        IssueDeps
	Rotate       RotateDeps
	ResetRequest ResetRequestDeps
	ResetConfirm ResetConfirmDeps
}
