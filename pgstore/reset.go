package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/reset"
	"github.com/jackc/pgx/v5"
)

// ResetStore keeps password reset records in the password_reset_tokens table.
type ResetStore struct {
	db DBTX
}

// NewResetStore constructs a store bound to db.
func NewResetStore(db DBTX) *ResetStore {
	return &ResetStore{db: db}
}

// Create inserts an unused record.
func (s *ResetStore) Create(ctx context.Context, rec *reset.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO password_reset_tokens (token_id, user_id, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, FALSE)
	`, rec.TokenID, rec.UserID, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
	}
	return nil
}

// Redeem flips used for tokenID when every condition holds; otherwise it reads the
// row back to report why.
func (s *ResetStore) Redeem(ctx context.Context, tokenID, userID string, now time.Time) (*reset.Record, error) {
	rec := &reset.Record{TokenID: tokenID, Used: true}
	err := s.db.QueryRow(ctx, `
		UPDATE password_reset_tokens
		SET used = TRUE
		WHERE token_id = $1 AND user_id = $2 AND NOT used AND expires_at > $3
		RETURNING user_id, created_at, expires_at
	`, tokenID, userID, now.UTC()).Scan(&rec.UserID, &rec.CreatedAt, &rec.ExpiresAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
	}

	current := &reset.Record{TokenID: tokenID}
	err = s.db.QueryRow(ctx, `
		SELECT user_id, created_at, expires_at, used FROM password_reset_tokens WHERE token_id = $1
	`, tokenID).Scan(&current.UserID, &current.CreatedAt, &current.ExpiresAt, &current.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reset.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
	}
	if err := current.Check(userID, now); err != nil {
		return nil, err
	}
	// The row satisfied the predicate after our update missed it, so another
	// redeemer won in between.
	return nil, reset.ErrUsed
}

// Prune deletes records that expired before horizon.
func (s *ResetStore) Prune(ctx context.Context, horizon time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, horizon.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}
