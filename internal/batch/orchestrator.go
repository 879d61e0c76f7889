package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/geopulselabs/geopulse/internal/change"
	"github.com/geopulselabs/geopulse/internal/clock"
	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery"
	imagerydomain "github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/observability/metrics"
	"github.com/geopulselabs/geopulse/internal/property"
	quotadomain "github.com/geopulselabs/geopulse/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// callsPerProperty is one provider call per period window.
const callsPerProperty = 2

type Params struct {
	fx.In

	Validator  *property.Validator
	Fetcher    *imagery.Fetcher
	Classifier *change.Classifier
	Quota      quotadomain.Service
	Log        *zap.Logger
	Metrics    *metrics.EngineMetrics
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
}

type Orchestrator struct {
	validator  *property.Validator
	fetcher    *imagery.Fetcher
	classifier *change.Classifier
	quota      quotadomain.Service
	log        *zap.Logger
	metrics    *metrics.EngineMetrics
	genID      *snowflake.Node
	clock      clock.Clock
	engine     config.EngineConfig
}

func NewOrchestrator(p Params) *Orchestrator {
	return &Orchestrator{
		validator:  p.Validator,
		fetcher:    p.Fetcher,
		classifier: p.Classifier,
		quota:      p.Quota,
		log:        p.Log.Named("batch.orchestrator"),
		metrics:    p.Metrics,
		genID:      p.GenID,
		clock:      p.Clock,
		engine:     p.Cfg.Engine,
	}
}

var Module = fx.Module("batch",
	fx.Provide(NewOrchestrator),
)

// Run processes one batch end to end. Property-level failures are data
// in the result; the only error returns are the quota precondition
// failure and a ledger commit that could not be recorded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Rows) == 0 {
		return Result{}, ErrNoRows
	}

	start := o.clock.Now()
	batchID := o.genID.Generate()
	log := o.log.With(
		zap.Int64("batch_id", batchID.Int64()),
		zap.String("user_id", req.UserID),
	)

	summary := RunSummary{
		BatchID:   batchID,
		State:     StateReceived,
		Attempted: len(req.Rows),
	}
	log.Info("batch received",
		zap.Int("rows", len(req.Rows)),
		zap.String("before", req.Before.Start.Format("2006-01-02")),
		zap.String("after", req.After.Start.Format("2006-01-02")),
	)

	// Validation runs first: it is local and cheap, and the quota check
	// needs the valid-property count to price the batch.
	summary.State = StateValidating
	properties, rejections := o.validator.ValidateAll(req.Rows)
	for _, r := range rejections {
		summary.Exclusions = append(summary.Exclusions, Exclusion{
			PropertyID: r.ID,
			Position:   r.Position,
			Reason:     r.Reason,
		})
	}

	requiredCalls := callsPerProperty * len(properties)
	check, err := o.quota.Check(ctx, req.UserID, requiredCalls)
	if err != nil {
		return Result{}, fmt.Errorf("quota check: %w", err)
	}
	if !check.Allowed {
		summary.State = StateRejected
		summary.RejectionReason = check.Reason
		o.metrics.IncQuotaDenial()
		o.metrics.IncBatch(string(StateRejected))
		log.Warn("batch rejected before any fetch",
			zap.String("reason", check.Reason),
			zap.Int("required_calls", requiredCalls),
			zap.Int("remaining_calls", check.Summary.RemainingCalls),
		)
		return Result{Summary: summary, Quota: check.Summary},
			fmt.Errorf("%w: %s", ErrQuotaDenied, check.Reason)
	}
	summary.State = StateQuotaChecked

	summary.State = StateFetching
	befores, afters := o.fetchAll(ctx, properties, req.Before, req.After)

	successfulCalls := 0
	for i := range properties {
		if befores[i].Succeeded() {
			successfulCalls++
		}
		if afters[i].Succeeded() {
			successfulCalls++
		}
	}
	summary.SuccessfulCalls = successfulCalls

	summary.State = StateClassifying
	var records []change.ChangeRecord
	for i, prop := range properties {
		record := o.classifier.Classify(prop.ID, prop.Position, befores[i], afters[i])
		if record.Status == change.StatusSuccess {
			records = append(records, record)
			continue
		}
		summary.Exclusions = append(summary.Exclusions, Exclusion{
			PropertyID: record.PropertyID,
			Position:   record.Position,
			Reason:     record.Reason,
		})
	}
	summary.Succeeded = len(records)
	summary.Excluded = summary.Attempted - summary.Succeeded

	quotaSummary, err := o.commitWithRetry(ctx, req.UserID, successfulCalls, log)
	if err != nil {
		o.metrics.IncBatch("commit_failed")
		return Result{}, err
	}

	summary.State = StateCompleted
	summary.Duration = o.clock.Now().Sub(start)
	o.metrics.IncBatch(string(StateCompleted))
	o.metrics.ObserveBatchDuration(summary.Duration)
	o.metrics.AddProperties("succeeded", summary.Succeeded)
	o.metrics.AddProperties("excluded", summary.Excluded)

	log.Info("batch completed",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("excluded", summary.Excluded),
		zap.Int("successful_calls", successfulCalls),
		zap.Duration("duration", summary.Duration),
	)
	return Result{Summary: summary, Records: records, Quota: quotaSummary}, nil
}

// fetchAll issues the before and after fetches for every property
// through a bounded pool. The two fetches for one property are
// independent and may run concurrently.
func (o *Orchestrator) fetchAll(ctx context.Context, properties []property.Property, before, after imagerydomain.PeriodWindow) ([]imagerydomain.IndexResult, []imagerydomain.IndexResult) {
	befores := make([]imagerydomain.IndexResult, len(properties))
	afters := make([]imagerydomain.IndexResult, len(properties))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.engine.FetchConcurrency)

	for i, prop := range properties {
		i, prop := i, prop
		group.Go(func() error {
			befores[i] = o.fetcher.Fetch(groupCtx, prop, before)
			return nil
		})
		group.Go(func() error {
			afters[i] = o.fetcher.Fetch(groupCtx, prop, after)
			return nil
		})
	}
	group.Wait()
	return befores, afters
}

// commitWithRetry records usage in the ledger. Failing to account for
// performed calls is the one fatal batch condition. The commit runs
// detached from caller cancellation: calls already performed must be
// charged even when the client disconnects mid-batch.
func (o *Orchestrator) commitWithRetry(ctx context.Context, userID string, successfulCalls int, log *zap.Logger) (quotadomain.Summary, error) {
	ctx = context.WithoutCancel(ctx)
	retries := o.engine.CommitRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		account, err := o.quota.Commit(ctx, userID, successfulCalls)
		if err == nil {
			summary, statusErr := o.quota.Status(ctx, userID)
			if statusErr != nil {
				// Commit landed, the summary is best effort.
				summary = quotadomain.Summary{
					UserID:         account.UserID,
					AllowedCalls:   account.AllowedCalls,
					PerformedCalls: account.PerformedCalls,
				}
			}
			return summary, nil
		}
		lastErr = err
		log.Warn("quota commit failed",
			zap.Int("attempt", attempt),
			zap.Int("successful_calls", successfulCalls),
			zap.Error(err),
		)
		// A ledger-level rejection will not resolve by retrying.
		if errors.Is(err, quotadomain.ErrQuotaExceeded) || errors.Is(err, quotadomain.ErrAccountNotFound) {
			break
		}
		if attempt < retries {
			time.Sleep(o.engine.CommitBackoff * time.Duration(attempt))
		}
	}
	return quotadomain.Summary{}, fmt.Errorf("%w: %v", ErrCommitFailed, lastErr)
}
