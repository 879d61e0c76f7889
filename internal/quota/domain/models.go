// Package domain contains the quota ledger model and service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// QuotaAccount tracks remote provider calls allowed and performed for one
// user. The ledger service is the sole writer; performed_calls never
// decreases outside an explicit admin reset.
type QuotaAccount struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	UserID           string            `gorm:"type:text;not null;uniqueIndex"`
	AllowedCalls     int               `gorm:"not null;default:50"`
	PerformedCalls   int               `gorm:"not null;default:0"`
	AccountCreatedAt time.Time         `gorm:"not null"`
	ExpiresAt        time.Time         `gorm:"not null;index"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (QuotaAccount) TableName() string { return "quota_accounts" }

// CheckResult reports whether a batch may start. A denial is an expected
// outcome, not an error.
type CheckResult struct {
	Allowed bool
	Reason  string
	Summary Summary
}

// Summary is the read-only quota status surface.
type Summary struct {
	UserID          string    `json:"user_id"`
	AllowedCalls    int       `json:"allowed_calls"`
	PerformedCalls  int       `json:"performed_calls"`
	RemainingCalls  int       `json:"remaining_calls"`
	UsagePercentage float64   `json:"usage_percentage"`
	AccountCreated  time.Time `json:"account_created"`
	ExpiresAt       time.Time `json:"expires_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	IsExpired       bool      `json:"is_expired"`
}
