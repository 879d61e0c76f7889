// Package domain defines the audit trail for quota administration and
// batch submissions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActionBatchSubmit = "batch.submit"
	ActionQuotaExtend = "quota.extend"
	ActionQuotaReset  = "quota.reset"
)

// Entry is an immutable record of one engine action.
type Entry struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	UserID     string            `gorm:"type:text;not null;index"`
	Action     string            `gorm:"type:text;not null;index"`
	TargetType string            `gorm:"type:text;not null"`
	TargetID   *string           `gorm:"type:text"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	IPAddress  *string           `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "audit_entries" }
