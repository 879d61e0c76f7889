package domain

import (
	"context"
	"errors"
)

// Provider is the remote imagery capability. Implementations classify
// their failures as transient or definitive via ProviderError so the
// fetcher knows whether a retry is worthwhile.
type Provider interface {
	GetIndices(ctx context.Context, box BoundingBox, window PeriodWindow) (IndexValues, error)
}

// ProviderError carries the retry classification for a failed call.
// Transient covers timeouts and 5xx-equivalent conditions; definitive
// rejections (invalid coordinates, no imagery) must not be retried.
type ProviderError struct {
	Reason    string
	Transient bool
}

func (e *ProviderError) Error() string { return e.Reason }

// Transient reports whether err should be retried once.
func Transient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	// Unclassified errors (network layer, context deadline) are treated
	// as transient.
	return !errors.Is(err, context.Canceled)
}
