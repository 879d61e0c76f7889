package domain

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound = errors.New("quota_account_not_found")
	ErrAccountExpired  = errors.New("quota_account_expired")
	ErrQuotaExceeded   = errors.New("quota_exceeded")
	ErrInvalidUserID   = errors.New("invalid_user_id")
	ErrInvalidCalls    = errors.New("invalid_call_count")
)

// Service is the quota ledger. Check answers whether a batch of the given
// cost may start; Commit records calls actually performed after the batch
// finishes. Commit must never be called for calls that did not happen.
type Service interface {
	// EnsureAccount returns the account for userID, provisioning one with
	// the configured defaults when none exists.
	EnsureAccount(ctx context.Context, userID string) (*QuotaAccount, error)

	// Check verifies that requiredCalls fit in the remaining allowance.
	// It performs no writes.
	Check(ctx context.Context, userID string, requiredCalls int) (CheckResult, error)

	// Commit atomically adds performedCalls to the ledger. It fails with
	// ErrQuotaExceeded if the increment would overrun the allowance.
	Commit(ctx context.Context, userID string, performedCalls int) (*QuotaAccount, error)

	// ExtendExpiry pushes the expiry forward by the given number of days
	// from now.
	ExtendExpiry(ctx context.Context, userID string, days int) (*QuotaAccount, error)

	// ResetCalls zeroes performed_calls and optionally replaces the
	// allowance when newAllowed > 0.
	ResetCalls(ctx context.Context, userID string, newAllowed int) (*QuotaAccount, error)

	// Status reports current usage without mutating the ledger.
	Status(ctx context.Context, userID string) (Summary, error)
}
