package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/geopulselabs/geopulse/internal/audit/domain"
	"github.com/geopulselabs/geopulse/internal/clock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			ip_address TEXT,
			created_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create audit_entries: %v", err)
	}
	return db
}

func newAuditService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.FixedClock{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestRecordAndListByUser(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := newAuditService(t, db)

	target := "12345"
	err := svc.Record(context.Background(), "audit-user-1", auditdomain.ActionQuotaExtend, "quota_account", &target, map[string]any{
		"days": 30,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(context.Background(), "audit-user-1", auditdomain.ActionBatchSubmit, "batch", nil, nil); err != nil {
		t.Fatalf("record second: %v", err)
	}
	if err := svc.Record(context.Background(), "audit-user-2", auditdomain.ActionQuotaReset, "quota_account", nil, nil); err != nil {
		t.Fatalf("record other user: %v", err)
	}

	entries, err := svc.ListByUser(context.Background(), "audit-user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.UserID != "audit-user-1" {
			t.Fatalf("foreign entry leaked: %+v", e)
		}
	}
}

func TestListByUserClampsLimit(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := newAuditService(t, db)

	entries, err := svc.ListByUser(context.Background(), "audit-user-absent", -5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
