package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/geopulselabs/geopulse/internal/clock"
	"github.com/geopulselabs/geopulse/internal/config"
	quotadomain "github.com/geopulselabs/geopulse/internal/quota/domain"
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
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.QuotaConfig
}

func NewService(p Params) quotadomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("quota.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg.Quota,
	}
}

func (s *Service) EnsureAccount(ctx context.Context, userID string) (*quotadomain.QuotaAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, quotadomain.ErrInvalidUserID
	}

	var account quotadomain.QuotaAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	account = quotadomain.QuotaAccount{
		ID:               s.genID.Generate(),
		UserID:           userID,
		AllowedCalls:     s.cfg.DefaultAllowedCalls,
		PerformedCalls:   0,
		AccountCreatedAt: now,
		ExpiresAt:        now.Add(time.Duration(s.cfg.DefaultValidityDays) * 24 * time.Hour),
		Metadata:         datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		// Concurrent provisioning for the same user loses the unique race.
		var existing quotadomain.QuotaAccount
		if lookupErr := s.db.WithContext(ctx).
			Where("user_id = ?", userID).
			First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}

	s.log.Info("quota account provisioned",
		zap.String("user_id", userID),
		zap.Int("allowed_calls", account.AllowedCalls),
		zap.Time("expires_at", account.ExpiresAt),
	)
	return &account, nil
}

func (s *Service) Check(ctx context.Context, userID string, requiredCalls int) (quotadomain.CheckResult, error) {
	if requiredCalls < 0 {
		return quotadomain.CheckResult{}, quotadomain.ErrInvalidCalls
	}

	account, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return quotadomain.CheckResult{}, err
	}

	summary := s.summarize(account)
	if summary.IsExpired {
		return quotadomain.CheckResult{
			Allowed: false,
			Reason:  "account_expired",
			Summary: summary,
		}, nil
	}
	if account.PerformedCalls+requiredCalls > account.AllowedCalls {
		return quotadomain.CheckResult{
			Allowed: false,
			Reason:  "insufficient_quota",
			Summary: summary,
		}, nil
	}
	return quotadomain.CheckResult{Allowed: true, Summary: summary}, nil
}

func (s *Service) Commit(ctx context.Context, userID string, performedCalls int) (*quotadomain.QuotaAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, quotadomain.ErrInvalidUserID
	}
	if performedCalls < 0 {
		return nil, quotadomain.ErrInvalidCalls
	}

	var account quotadomain.QuotaAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if performedCalls > 0 {
			res := tx.Exec(`
				UPDATE quota_accounts
				SET performed_calls = performed_calls + ?,
				    updated_at = ?
				WHERE user_id = ?
				  AND performed_calls + ? <= allowed_calls
			`, performedCalls, s.clock.Now(), userID, performedCalls)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var exists int64
				if err := tx.Model(&quotadomain.QuotaAccount{}).
					Where("user_id = ?", userID).
					Count(&exists).Error; err != nil {
					return err
				}
				if exists == 0 {
					return quotadomain.ErrAccountNotFound
				}
				return quotadomain.ErrQuotaExceeded
			}
		}
		return tx.Where("user_id = ?", userID).First(&account).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("quota committed",
		zap.String("user_id", userID),
		zap.Int("performed_calls", performedCalls),
		zap.Int("total_performed", account.PerformedCalls),
		zap.Int("allowed_calls", account.AllowedCalls),
	)
	return &account, nil
}

func (s *Service) ExtendExpiry(ctx context.Context, userID string, days int) (*quotadomain.QuotaAccount, error) {
	if days <= 0 {
		return nil, quotadomain.ErrInvalidCalls
	}

	account, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// An unexpired account extends from its current expiry; an expired
	// one restarts from today. Extending can never shorten the window.
	now := s.clock.Now()
	base := account.ExpiresAt
	if now.After(base) {
		base = now
	}
	account.ExpiresAt = base.Add(time.Duration(days) * 24 * time.Hour)
	account.UpdatedAt = now
	if err := s.db.WithContext(ctx).Model(&quotadomain.QuotaAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"expires_at": account.ExpiresAt,
			"updated_at": account.UpdatedAt,
		}).Error; err != nil {
		return nil, err
	}

	s.log.Info("quota expiry extended",
		zap.String("user_id", userID),
		zap.Int("days", days),
		zap.Time("expires_at", account.ExpiresAt),
	)
	return account, nil
}

func (s *Service) ResetCalls(ctx context.Context, userID string, newAllowed int) (*quotadomain.QuotaAccount, error) {
	if newAllowed < 0 {
		return nil, quotadomain.ErrInvalidCalls
	}

	account, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updates := map[string]any{
		"performed_calls": 0,
		"updated_at":      now,
	}
	account.PerformedCalls = 0
	account.UpdatedAt = now
	if newAllowed > 0 {
		updates["allowed_calls"] = newAllowed
		account.AllowedCalls = newAllowed
	}
	if err := s.db.WithContext(ctx).Model(&quotadomain.QuotaAccount{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	s.log.Info("quota reset",
		zap.String("user_id", userID),
		zap.Int("allowed_calls", account.AllowedCalls),
	)
	return account, nil
}

func (s *Service) Status(ctx context.Context, userID string) (quotadomain.Summary, error) {
	account, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return quotadomain.Summary{}, err
	}
	return s.summarize(account), nil
}

func (s *Service) summarize(account *quotadomain.QuotaAccount) quotadomain.Summary {
	now := s.clock.Now()
	remaining := account.AllowedCalls - account.PerformedCalls
	if remaining < 0 {
		remaining = 0
	}

	usage := 0.0
	if account.AllowedCalls > 0 {
		usage = float64(account.PerformedCalls) / float64(account.AllowedCalls) * 100
	}

	days := int(account.ExpiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}

	return quotadomain.Summary{
		UserID:          account.UserID,
		AllowedCalls:    account.AllowedCalls,
		PerformedCalls:  account.PerformedCalls,
		RemainingCalls:  remaining,
		UsagePercentage: usage,
		AccountCreated:  account.AccountCreatedAt,
		ExpiresAt:       account.ExpiresAt,
		DaysUntilExpiry: days,
		IsExpired:       now.After(account.ExpiresAt),
	}
}
