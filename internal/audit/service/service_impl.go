package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/geopulselabs/geopulse/internal/audit/domain"
	"github.com/geopulselabs/geopulse/internal/clock"
	obscontext "github.com/geopulselabs/geopulse/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, userID, action, targetType string, targetID *string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	entry := auditdomain.Entry{
		ID:         s.genID.Generate(),
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("audit record failed",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []*auditdomain.Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
