package domain

import "context"

// Service records engine actions. Recording is best effort from the
// caller's point of view; failures are logged, never propagated into
// the request path.
type Service interface {
	Record(ctx context.Context, userID, action, targetType string, targetID *string, metadata map[string]any) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error)
}
