package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/refresh"
)

// IssueFailureKind classifies issue flow failures.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureMint
	IssueFailureStore
	IssueFailureAccess
)

// IssueResult carries the new family's first token pair.
type IssueResult struct {
	Failure         IssueFailureKind
	Err             error
	Record          *refresh.Record
	RefreshToken    string
	AccessToken     string
	AccessExpiresAt time.Time
}

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	Store       refresh.Store
	Now         func() time.Time
	RefreshTTL  time.Duration
	NewToken    TokenMinter
	NewFamilyID func() string
	IssueAccess AccessIssuer
}

// RunIssue starts a new refresh family for userID with one Active record.
func RunIssue(ctx context.Context, userID string, deps IssueDeps) IssueResult {
	now := deps.Now()

	raw, tokenID, err := deps.NewToken()
	if err != nil {
		return IssueResult{Failure: IssueFailureMint, Err: err}
	}

	rec := &refresh.Record{
		TokenID:   tokenID,
		FamilyID:  deps.NewFamilyID(),
		UserID:    userID,
		Status:    refresh.StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.RefreshTTL),
	}

	access, accessExp, err := deps.IssueAccess(ctx, userID, now)
	if err != nil {
		return IssueResult{Failure: IssueFailureAccess, Err: err, Record: rec}
	}

	if err := deps.Store.Create(ctx, rec); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err, Record: rec}
	}

	return IssueResult{
		Record:          rec,
		RefreshToken:    raw,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
	}
}
