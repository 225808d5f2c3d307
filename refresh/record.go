package refresh

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a refresh-token record.
type Status uint8

const (
	// StatusActive marks the single usable record of a family.
	StatusActive Status = iota + 1
	// StatusRotated marks a record superseded by a successful rotation.
	StatusRotated
	// StatusRevoked marks a record whose family was revoked.
	StatusRevoked
)

var transitions = map[Status][]Status{
	StatusActive:  {StatusRotated, StatusRevoked},
	StatusRotated: {StatusRevoked},
	StatusRevoked: {StatusRevoked},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRotated:
		return "rotated"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseStatus converts the storage form produced by String back into a Status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "active":
		return StatusActive, nil
	case "rotated":
		return StatusRotated, nil
	case "revoked":
		return StatusRevoked, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
}

// Record is one refresh token in a family chain.
type Record struct {
	TokenID    string
	FamilyID   string
	UserID     string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ReplacedBy string
}

// Expired reports whether the record's lifetime ended at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Usable reports whether the record can be exchanged by a rotation at now.
func (r *Record) Usable(now time.Time) bool {
	return r.Status == StatusActive && !r.Expired(now)
}

// Successor builds the Active record that replaces r during rotation.
func (r *Record) Successor(tokenID string, now time.Time, ttl time.Duration) *Record {
	return &Record{
		TokenID:   tokenID,
		FamilyID:  r.FamilyID,
		UserID:    r.UserID,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
