// Package imagery fetches raw index statistics for one property and one
// period from the remote provider.
package imagery

import (
	"context"
	"time"

	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/observability/metrics"
	"github.com/geopulselabs/geopulse/internal/property"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Provider domain.Provider
	Log      *zap.Logger
	Metrics  *metrics.EngineMetrics
	Cfg      config.Config
}

// Fetcher wraps the provider with per-attempt timeouts and a single
// retry for transient failures. Failures are returned as data in the
// IndexResult, never as errors.
type Fetcher struct {
	provider domain.Provider
	log      *zap.Logger
	metrics  *metrics.EngineMetrics
	timeout  time.Duration
	backoff  time.Duration
}

func NewFetcher(p Params) *Fetcher {
	return &Fetcher{
		provider: p.Provider,
		log:      p.Log.Named("imagery.fetcher"),
		metrics:  p.Metrics,
		timeout:  p.Cfg.Provider.Timeout,
		backoff:  p.Cfg.Provider.RetryBackoff,
	}
}

// Fetch performs at most two provider attempts for the given property
// and window: Attempt1 -> success | retry -> Attempt2 -> success | fail.
// Only transient failures reach the second attempt.
func (f *Fetcher) Fetch(ctx context.Context, prop property.Property, window domain.PeriodWindow) domain.IndexResult {
	requestID := uuid.NewString()
	box := domain.BoundsFor(prop.Latitude, prop.Longitude, prop.ExtentAcres)

	log := f.log.With(
		zap.String("request_id", requestID),
		zap.String("property_id", prop.ID),
		zap.String("window", window.Name),
		zap.Float64("latitude", prop.Latitude),
		zap.Float64("longitude", prop.Longitude),
	)

	values, err := f.attempt(ctx, box, window)
	if err != nil && domain.Transient(err) && ctx.Err() == nil {
		log.Warn("transient fetch failure, retrying once",
			zap.String("reason", err.Error()),
			zap.Duration("backoff", f.backoff),
		)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(f.backoff):
			values, err = f.attempt(ctx, box, window)
		}
	}

	if err != nil {
		log.Warn("fetch failed", zap.String("reason", err.Error()))
		return domain.IndexResult{
			PropertyID: prop.ID,
			Window:     window.Name,
			Err:        err.Error(),
		}
	}

	log.Info("fetch succeeded",
		zap.Float64("vegetation", values.Vegetation),
		zap.Float64("built_up", values.BuiltUp),
		zap.Float64("water", values.Water),
	)
	return domain.IndexResult{
		PropertyID: prop.ID,
		Window:     window.Name,
		Values:     values,
	}
}

func (f *Fetcher) attempt(ctx context.Context, box domain.BoundingBox, window domain.PeriodWindow) (domain.IndexValues, error) {
	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	values, err := f.provider.GetIndices(attemptCtx, box, window)
	result := "success"
	if err != nil {
		result = "failure"
	}
	f.metrics.ObserveProviderCall(result, time.Since(start))
	return values, err
}
