// Package audit records security relevant dashboard actions in sqlite and
// fans them out to live subscribers.
package audit

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"panel-dash/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sqlite file at path and migrates the audit table.
// path ":memory:" gives a private in-memory database.
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&model.AuditEvent{}); err != nil {
		return nil, fmt.Errorf("migrate audit table: %w", err)
	}
	return db, nil
}

func newGormLogger(l *zap.Logger) logger.Interface {
	var w logger.Writer = log.New(os.Stdout, "\r\n", log.LstdFlags)
	if l != nil {
		w = zap.NewStdLog(l.Named("gorm"))
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Recorder writes audit events and publishes them to the hub.
type Recorder struct {
	db  *gorm.DB
	hub *Hub
	log *zap.Logger
	now func() time.Time
}

func NewRecorder(db *gorm.DB, hub *Hub, log *zap.Logger) *Recorder {
	return &Recorder{db: db, hub: hub, log: log, now: time.Now}
}

// Hub returns the live event hub.
func (r *Recorder) Hub() *Hub {
	return r.hub
}

// Record stores ev. A storage failure is logged and does not fail the
// caller's request.
func (r *Recorder) Record(ctx context.Context, ev model.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		r.log.Error("audit write failed", zap.String("action", ev.Action), zap.Error(err))
	}
	if r.hub != nil {
		r.hub.Publish(ev)
	}
}

// Recent returns the newest events first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []model.AuditEvent
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&events).Error
	return events, err
}

// CountPanels returns how many panels were created through the dashboard.
func (r *Recorder) CountPanels(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AuditEvent{}).
		Where("action = ? AND outcome = ?", model.ActionPanelCreate, model.OutcomeSuccess).
		Count(&n).Error
	return n, err
}

// Prune deletes events older than maxAge and returns how many were removed.
func (r *Recorder) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", r.now().UTC().Add(-maxAge)).Delete(&model.AuditEvent{})
	return res.RowsAffected, res.Error
}
