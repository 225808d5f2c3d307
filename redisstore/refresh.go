package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/refresh"
	"github.com/redis/go-redis/v9"
)

const (
	casStatusNotFound       int64 = 0
	casStatusExpired        int64 = 1
	casStatusConflict       int64 = 2
	casStatusApplied        int64 = 3
	casStatusFamilyMismatch int64 = 4
)

const rotateScript = `
local status = redis.call("HGET", KEYS[1], "st")
if not status then
  return 0
end

local expires_at = tonumber(redis.call("HGET", KEYS[1], "ea") or "0")
if expires_at <= tonumber(ARGV[1]) then
  return 1
end

if status ~= "active" then
  return 2
end

local family_id = redis.call("HGET", KEYS[1], "fid")
if family_id ~= ARGV[6] then
  return 4
end
local user_id = redis.call("HGET", KEYS[1], "uid")

redis.call("HSET", KEYS[1], "st", "rotated", "rb", ARGV[2])
redis.call("HSET", KEYS[2], "fid", family_id, "uid", user_id, "st", "active", "ca", ARGV[3], "ea", ARGV[4], "rb", "")
redis.call("PEXPIREAT", KEYS[2], ARGV[5])
redis.call("SADD", KEYS[3], ARGV[2])
redis.call("PEXPIREAT", KEYS[3], ARGV[5])
redis.call("PEXPIREAT", KEYS[4], ARGV[5])

return 3
`

const updateStatusScript = `
local status = redis.call("HGET", KEYS[1], "st")
if not status then
  return 0
end
if status ~= ARGV[1] then
  return 2
end
redis.call("HSET", KEYS[1], "st", ARGV[2])
return 3
`

const revokeFamilyScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local changed = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local status = redis.call("HGET", key, "st")
  if status and status ~= "revoked" then
    redis.call("HSET", key, "st", "revoked")
    changed = changed + 1
  end
end
return changed
`

var (
	rotateLua       = redis.NewScript(rotateScript)
	updateStatusLua = redis.NewScript(updateStatusScript)
	revokeFamilyLua = redis.NewScript(revokeFamilyScript)
)

// RefreshStore keeps refresh-token records in Redis hashes.
type RefreshStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRefreshStore creates a [RefreshStore]. prefix namespaces every key; retention
// is how long a record outlives its ExpiresAt.
func NewRefreshStore(client redis.UniversalClient, prefix string, retention time.Duration) *RefreshStore {
	if prefix == "" {
		prefix = "gs"
	}
	if retention < 0 {
		retention = 0
	}
	return &RefreshStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

// hashTag wraps prefix in braces so every key of a store maps to one Redis
// Cluster slot and the multi-key scripts never hit CROSSSLOT.
func hashTag(prefix string) string {
	return "{" + prefix + "}"
}

func (s *RefreshStore) recordPrefix() string {
	return hashTag(s.prefix) + ":rt:"
}

func (s *RefreshStore) recordKey(tokenID string) string {
	return s.recordPrefix() + tokenID
}

func (s *RefreshStore) familyKey(familyID string) string {
	return hashTag(s.prefix) + ":rf:" + familyID
}

func (s *RefreshStore) userKey(userID string) string {
	return hashTag(s.prefix) + ":ru:" + userID
}

func (s *RefreshStore) retainUntil(expiresAt time.Time) time.Time {
	return expiresAt.Add(s.retention)
}

// Create stores rec and indexes it under its family and user.
func (s *RefreshStore) Create(ctx context.Context, rec *refresh.Record) error {
	if rec == nil || rec.TokenID == "" || rec.FamilyID == "" {
		return errors.New("refresh record requires token and family id")
	}

	key := s.recordKey(rec.TokenID)
	familyKey := s.familyKey(rec.FamilyID)
	userKey := s.userKey(rec.UserID)
	until := s.retainUntil(rec.ExpiresAt)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"fid", rec.FamilyID,
			"uid", rec.UserID,
			"st", rec.Status.String(),
			"ca", rec.CreatedAt.UnixMilli(),
			"ea", rec.ExpiresAt.UnixMilli(),
			"rb", rec.ReplacedBy,
		)
		pipe.PExpireAt(ctx, key, until)
		pipe.SAdd(ctx, familyKey, rec.TokenID)
		pipe.PExpireAt(ctx, familyKey, until)
		pipe.SAdd(ctx, userKey, rec.FamilyID)
		pipe.PExpireAt(ctx, userKey, until)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return nil
}

// Get loads the record stored under tokenID.
func (s *RefreshStore) Get(ctx context.Context, tokenID string) (*refresh.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, refresh.ErrNotFound
	}
	return decodeRecord(tokenID, fields)
}

// Rotate swaps tokenID for next in one script run.
func (s *RefreshStore) Rotate(ctx context.Context, tokenID string, next *refresh.Record) error {
	if next == nil || next.TokenID == "" {
		return errors.New("rotation requires a successor record")
	}

	keys := []string{
		s.recordKey(tokenID),
		s.recordKey(next.TokenID),
		s.familyKey(next.FamilyID),
		s.userKey(next.UserID),
	}
	code, err := rotateLua.Run(ctx, s.redis, keys,
		next.CreatedAt.UnixMilli(),
		next.TokenID,
		next.CreatedAt.UnixMilli(),
		next.ExpiresAt.UnixMilli(),
		s.retainUntil(next.ExpiresAt).UnixMilli(),
		next.FamilyID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}

	switch code {
	case casStatusApplied:
		return nil
	case casStatusNotFound:
		return refresh.ErrNotFound
	case casStatusExpired:
		return refresh.ErrExpired
	case casStatusConflict:
		return refresh.ErrStatusConflict
	case casStatusFamilyMismatch:
		return fmt.Errorf("%w: successor family differs from stored record", refresh.ErrStatusConflict)
	default:
		return fmt.Errorf("%w: unexpected rotate result %d", refresh.ErrBackendUnavailable, code)
	}
}

// UpdateStatus moves tokenID from one status to another if it is still in from.
func (s *RefreshStore) UpdateStatus(ctx context.Context, tokenID string, from, to refresh.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", refresh.ErrInvalidTransition, from, to)
	}

	code, err := updateStatusLua.Run(ctx, s.redis, []string{s.recordKey(tokenID)}, from.String(), to.String()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}

	switch code {
	case casStatusApplied:
		return nil
	case casStatusNotFound:
		return refresh.ErrNotFound
	case casStatusConflict:
		return refresh.ErrStatusConflict
	default:
		return fmt.Errorf("%w: unexpected update result %d", refresh.ErrBackendUnavailable, code)
	}
}

// RevokeFamily marks every record in the family revoked.
func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	changed, err := revokeFamilyLua.Run(ctx, s.redis, []string{s.familyKey(familyID)}, s.recordPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return int(changed), nil
}

// FamilyIDs lists the families indexed for userID.
func (s *RefreshStore) FamilyIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return ids, nil
}

// Ping checks connectivity to Redis.
func (s *RefreshStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrBackendUnavailable, err)
	}
	return nil
}

func decodeRecord(tokenID string, fields map[string]string) (*refresh.Record, error) {
	status, err := refresh.ParseStatus(fields["st"])
	if err != nil {
		return nil, err
	}
	createdAt, err := strconv.ParseInt(fields["ca"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("refresh record %s: bad created_at: %w", tokenID, err)
	}
	expiresAt, err := strconv.ParseInt(fields["ea"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("refresh record %s: bad expires_at: %w", tokenID, err)
	}

	return &refresh.Record{
		TokenID:    tokenID,
		FamilyID:   fields["fid"],
		UserID:     fields["uid"],
		Status:     status,
		CreatedAt:  time.UnixMilli(createdAt),
		ExpiresAt:  time.UnixMilli(expiresAt),
		ReplacedBy: fields["rb"],
	}, nil
}
