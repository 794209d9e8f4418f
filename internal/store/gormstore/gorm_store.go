// Package gormstore keeps finished exploration runs and their favorite flag
// in SQLite through Gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"explorer/internal/types"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// HistoryStore persists AggregateResults.
type HistoryStore struct {
	db *gorm.DB
}

// RunRecord is one history entry. Result is only filled by GetRun.
type RunRecord struct {
	ID             string                 `json:"id"`
	Kind           types.InputKind        `json:"type"`
	Content        string                 `json:"content"`
	Tags           []string               `json:"tags,omitempty"`
	Favorite       bool                   `json:"favorite"`
	Models         int                    `json:"models"`
	Contributors   int                    `json:"contributors"`
	TotalLatencyMs int64                  `json:"processingTime"`
	ProducedAt     time.Time              `json:"timestamp"`
	Result         *types.AggregateResult `json:"result,omitempty"`
}

// ListQuery pages through history, newest first.
type ListQuery struct {
	Limit         int
	Offset        int
	FavoritesOnly bool
}

type runModel struct {
	ID             string         `gorm:"column:id;primaryKey;size:36"`
	Kind           string         `gorm:"column:kind;index"`
	Content        string         `gorm:"column:content"`
	Tags           datatypes.JSON `gorm:"column:tags"`
	Payload        datatypes.JSON `gorm:"column:payload"`
	Favorite       bool           `gorm:"column:favorite;index"`
	Models         int            `gorm:"column:models"`
	Contributors   int            `gorm:"column:contributors"`
	TotalLatencyMs int64          `gorm:"column:total_latency_ms"`
	ProducedAt     int64          `gorm:"column:produced_at;index"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	UpdatedAtUnix  int64          `gorm:"column:updated_at"`
}

func (runModel) TableName() string { return "exploration_runs" }

// NewHistoryStore opens (and migrates) the database at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history store: path must not be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism for the HTTP handlers.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun inserts the run, or replaces its payload if the id already exists.
// The favorite flag of an existing row is kept.
func (s *HistoryStore) SaveRun(ctx context.Context, res types.AggregateResult) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	if strings.TrimSpace(res.ID) == "" {
		return fmt.Errorf("history store: run id is required")
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	tags, err := json.Marshal(res.InputEcho.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	produced := res.ProducedAt
	if produced.IsZero() {
		produced = time.Now()
	}
	now := time.Now().Unix()
	m := runModel{
		ID:             res.ID,
		Kind:           string(res.InputEcho.Kind),
		Content:        res.InputEcho.Content,
		Tags:           datatypes.JSON(tags),
		Payload:        datatypes.JSON(payload),
		Models:         len(res.Outcomes),
		Contributors:   res.Contributors(),
		TotalLatencyMs: res.TotalLatencyMs,
		ProducedAt:     produced.UnixMilli(),
		CreatedAtUnix:  now,
		UpdatedAtUnix:  now,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing runModel
		err := tx.Where("id = ?", m.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&m).Error
		case err != nil:
			return err
		}
		m.Favorite = existing.Favorite
		m.CreatedAtUnix = existing.CreatedAtUnix
		return tx.Save(&m).Error
	})
}

// GetRun returns the run with its full result.
func (s *HistoryStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("history store not initialized")
	}
	var m runModel
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	rec := toRecord(m)
	var res types.AggregateResult
	if err := json.Unmarshal(m.Payload, &res); err != nil {
		return RunRecord{}, fmt.Errorf("decode run %s: %w", m.ID, err)
	}
	rec.Result = &res
	return rec, nil
}

// ListRuns returns one page of summaries plus the total matching count.
func (s *HistoryStore) ListRuns(ctx context.Context, q ListQuery) ([]RunRecord, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("history store not initialized")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	scope := func() *gorm.DB {
		db := s.db.WithContext(ctx).Model(&runModel{})
		if q.FavoritesOnly {
			db = db.Where("favorite = ?", true)
		}
		return db
	}
	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []runModel
	err := scope().Omit("payload").Order("produced_at DESC").Order("id").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]RunRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toRecord(m))
	}
	return out, total, nil
}

func (s *HistoryStore) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	tx := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", strings.TrimSpace(id)).
		Updates(map[string]any{"favorite": favorite, "updated_at": time.Now().Unix()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HistoryStore) DeleteRun(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	tx := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&runModel{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toRecord(m runModel) RunRecord {
	rec := RunRecord{
		ID:             m.ID,
		Kind:           types.InputKind(m.Kind),
		Content:        m.Content,
		Favorite:       m.Favorite,
		Models:         m.Models,
		Contributors:   m.Contributors,
		TotalLatencyMs: m.TotalLatencyMs,
		ProducedAt:     time.UnixMilli(m.ProducedAt),
	}
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &rec.Tags)
	}
	return rec
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
