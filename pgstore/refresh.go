package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/refresh"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used by the stores. Both *pgxpool.Pool and pgx.Tx
// satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DBTX = (*pgxpool.Pool)(nil)

// RefreshStore keeps refresh-token records in the refresh_tokens table.
type RefreshStore struct {
	db DBTX
}

// NewRefreshStore constructs a store bound to db.
func NewRefreshStore(db DBTX) *RefreshStore {
	return &RefreshStore{db: db}
}

const selectRefreshSQL = `
	SELECT family_id, user_id, status, created_at, expires_at, COALESCE(replaced_by, '')
	FROM refresh_tokens
	WHERE token_id = $1
`

// Create inserts rec.
func (s *RefreshStore) Create(ctx context.Context, rec *refresh.Record) error {
	return insertRefresh(ctx, s.db, rec)
}

func insertRefresh(ctx context.Context, db DBTX, rec *refresh.Record) error {
	query := `
		INSERT INTO refresh_tokens (token_id, family_id, user_id, status, created_at, expires_at, replaced_by)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`
	if _, err := db.Exec(ctx, query,
		rec.TokenID, rec.FamilyID, rec.UserID, rec.Status.String(),
		rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(), rec.ReplacedBy,
	); err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return nil
}

// Get returns the record for tokenID.
func (s *RefreshStore) Get(ctx context.Context, tokenID string) (*refresh.Record, error) {
	return getRefresh(ctx, s.db, tokenID)
}

func getRefresh(ctx context.Context, db DBTX, tokenID string) (*refresh.Record, error) {
	var (
		rec    = &refresh.Record{TokenID: tokenID}
		status string
	)
	err := db.QueryRow(ctx, selectRefreshSQL, tokenID).Scan(
		&rec.FamilyID, &rec.UserID, &status, &rec.CreatedAt, &rec.ExpiresAt, &rec.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}

	rec.Status, err = refresh.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// lockFamily serializes writers of one family until the surrounding
// transaction ends. Rotate and RevokeFamily both hold it, so a revoke never
// misses a successor inserted by a rotation that committed mid-statement.
func lockFamily(ctx context.Context, tx pgx.Tx, familyID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, familyID); err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return nil
}

// Rotate claims tokenID with a conditional update and inserts next in the same
// transaction, under the family lock.
func (s *RefreshStore) Rotate(ctx context.Context, tokenID string, next *refresh.Record) error {
	if next == nil || next.TokenID == "" {
		return errors.New("rotation requires a successor record")
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockFamily(ctx, tx, next.FamilyID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET status = 'rotated', replaced_by = $2
			WHERE token_id = $1 AND status = 'active' AND expires_at > $3 AND family_id = $4
		`, tokenID, next.TokenID, next.CreatedAt.UTC(), next.FamilyID)
		if err != nil {
			return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
		}

		if tag.RowsAffected() == 0 {
			current, err := getRefresh(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			return classifyMissedRotation(current, next)
		}

		return insertRefresh(ctx, tx, next)
	})
}

func classifyMissedRotation(current, next *refresh.Record) error {
	switch {
	case current.Expired(next.CreatedAt):
		return refresh.ErrExpired
	case current.FamilyID != next.FamilyID:
		return fmt.Errorf("%w: successor family differs from stored record", refresh.ErrStatusConflict)
	default:
		return refresh.ErrStatusConflict
	}
}

// UpdateStatus moves tokenID from one status to another when it is still in from.
func (s *RefreshStore) UpdateStatus(ctx context.Context, tokenID string, from, to refresh.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", refresh.ErrInvalidTransition, from, to)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET status = $3 WHERE token_id = $1 AND status = $2
	`, tokenID, from.String(), to.String())
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := getRefresh(ctx, s.db, tokenID); err != nil {
		return err
	}
	return refresh.ErrStatusConflict
}

// RevokeFamily revokes every record of the family. The statement runs after
// the family lock is taken, so its snapshot includes any successor a
// concurrent Rotate committed.
func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	var changed int
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockFamily(ctx, tx, familyID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE refresh_tokens SET status = 'revoked' WHERE family_id = $1 AND status <> 'revoked'
		`, familyID)
		if err != nil {
			return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
		}
		changed = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// FamilyIDs lists the distinct families of userID.
func (s *RefreshStore) FamilyIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT family_id FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return ids, nil
}

// Prune deletes families whose newest record expired before horizon. Whole
// families go at once so a replaced_by chain is never left dangling.
func (s *RefreshStore) Prune(ctx context.Context, horizon time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE family_id IN (
			SELECT family_id FROM refresh_tokens
			GROUP BY family_id
			HAVING MAX(expires_at) < $1
		)
	`, horizon.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks database connectivity.
func (s *RefreshStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return nil
}
