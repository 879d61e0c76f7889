// Package batch drives the per-property pipeline for one submitted
// batch: validate, quota-check, fetch, classify, commit, report.
package batch

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/geopulselabs/geopulse/internal/change"
	imagerydomain "github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/property"
	quotadomain "github.com/geopulselabs/geopulse/internal/quota/domain"
)

// State is the batch lifecycle. Completed and Rejected are terminal.
type State string

const (
	StateReceived     State = "received"
	StateValidating   State = "validating"
	StateQuotaChecked State = "quota_checked"
	StateFetching     State = "fetching"
	StateClassifying  State = "classifying"
	StateCompleted    State = "completed"
	StateRejected     State = "rejected"
)

var (
	// ErrQuotaDenied is the precondition failure: the batch never
	// started and produced no partial state.
	ErrQuotaDenied = errors.New("quota_denied")

	// ErrCommitFailed is fatal: usage could not be recorded, so the
	// batch result is withheld rather than released unaccounted.
	ErrCommitFailed = errors.New("quota_commit_failed")

	ErrNoRows = errors.New("no_input_rows")
)

// Request is one submitted batch.
type Request struct {
	UserID string
	Rows   []property.RawRow
	Before imagerydomain.PeriodWindow
	After  imagerydomain.PeriodWindow
	Label  string
}

// Exclusion explains why one property is absent from the report.
type Exclusion struct {
	PropertyID string `json:"property_id"`
	Position   int    `json:"position"`
	Reason     string `json:"reason"`
}

// RunSummary is the caller-facing accounting for one batch. For every
// run, Succeeded + Excluded == Attempted.
type RunSummary struct {
	BatchID         snowflake.ID `json:"batch_id"`
	State           State        `json:"state"`
	Attempted       int          `json:"attempted"`
	Succeeded       int          `json:"succeeded"`
	Excluded        int          `json:"excluded"`
	Exclusions      []Exclusion  `json:"exclusions,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	SuccessfulCalls int          `json:"successful_calls"`
	Duration        time.Duration `json:"-"`
}

// Result carries the summary, the SUCCESS records in input order, and
// the post-commit quota state.
type Result struct {
	Summary RunSummary
	Records []change.ChangeRecord
	Quota   quotadomain.Summary
}
