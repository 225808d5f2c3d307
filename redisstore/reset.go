package redisstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goSession/reset"
	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1
	redeemMaxRetries     = 4
)

var errResetRecordCorrupt = errors.New("reset record corrupt")

// ResetStore keeps password reset records as compact binary strings.
type ResetStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewResetStore creates a [ResetStore]. Used records are kept for retention past
// their expiry so that a replayed token reports "used" instead of "not found".
func NewResetStore(client redis.UniversalClient, prefix string, retention time.Duration) *ResetStore {
	if prefix == "" {
		prefix = "gs"
	}
	if retention < 0 {
		retention = 0
	}
	return &ResetStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *ResetStore) key(tokenID string) string {
	return hashTag(s.prefix) + ":pr:" + tokenID
}

// Create stores an unused record.
func (s *ResetStore) Create(ctx context.Context, rec *reset.Record) error {
	if rec == nil || rec.TokenID == "" {
		return errors.New("reset record requires token id")
	}
	encoded, err := encodeResetRecord(rec)
	if err != nil {
		return err
	}

	key := s.key(rec.TokenID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, 0)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt.Add(s.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
	}
	return nil
}

// Redeem marks tokenID used when it is unused, unexpired and owned by userID.
// Concurrent redeemers race on WATCH; at most one of them commits.
func (s *ResetStore) Redeem(ctx context.Context, tokenID, userID string, now time.Time) (*reset.Record, error) {
	key := s.key(tokenID)

	for i := 0; i < redeemMaxRetries; i++ {
		var redeemed *reset.Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return reset.ErrNotFound
				}
				return err
			}

			rec, err := decodeResetRecord(data)
			if err != nil {
				return err
			}
			rec.TokenID = tokenID

			if err := rec.Check(userID, now); err != nil {
				return err
			}

			rec.Used = true
			updated, err := encodeResetRecord(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			redeemed = rec
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, reset.ErrNotFound),
				errors.Is(err, reset.ErrUsed),
				errors.Is(err, reset.ErrExpired),
				errors.Is(err, reset.ErrUserMismatch),
				errors.Is(err, errResetRecordCorrupt):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", reset.ErrBackendUnavailable, err)
			}
		}

		return redeemed, nil
	}

	// Every attempt lost to a concurrent writer, which can only be another redeemer.
	return nil, reset.ErrUsed
}

func encodeResetRecord(rec *reset.Record) ([]byte, error) {
	if len(rec.UserID) > 0xFFFF {
		return nil, errors.New("reset record user id too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(resetRecordVersionV1)
	if rec.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.UserID)

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (*reset.Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != resetRecordVersionV1 {
		return nil, errResetRecordCorrupt
	}
	used, err := reader.ReadByte()
	if err != nil {
		return nil, errResetRecordCorrupt
	}

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, errResetRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, errResetRecordCorrupt
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, errResetRecordCorrupt
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, errResetRecordCorrupt
	}

	return &reset.Record{
		UserID:    string(userID),
		CreatedAt: time.UnixMilli(createdAt),
		ExpiresAt: time.UnixMilli(expiresAt),
		Used:      used == 1,
	}, nil
}
