// Package calllog records every model call of every run and summarizes them
// per model.
package calllog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"explorer/internal/types"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var errClosed = errors.New("call log closed")

// Store 管理模型调用流水，供统计接口使用。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Entry is one persisted model call.
type Entry struct {
	RunID     string `json:"run_id"`
	Slot      int    `json:"slot"`
	ModelID   string `json:"model_id"`
	ModelName string `json:"model_name"`
	Failed    bool   `json:"failed"`
	Tokens    int    `json:"tokens"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"ts"`
}

// ModelStats aggregates the call log for one model.
type ModelStats struct {
	ModelID      string  `json:"model_id"`
	ModelName    string  `json:"model_name"`
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalTokens  int64   `json:"total_tokens"`
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("call log path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS model_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			slot INTEGER NOT NULL,
			model_id TEXT NOT NULL,
			model_name TEXT,
			failed INTEGER NOT NULL,
			tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			ts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_model_calls_run ON model_calls(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_model_calls_model ON model_calls(model_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordOutcomes writes one row per outcome, keeping the slot index.
func (s *Store) RecordOutcomes(ctx context.Context, runID string, at time.Time, outcomes []types.ModelOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("call log: run id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO model_calls
		(run_id, slot, model_id, model_name, failed, tokens, latency_ms, error, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i, o := range outcomes {
		failed := 0
		if o.Failed {
			failed = 1
		}
		if _, err := stmt.ExecContext(ctx, runID, i, o.ID, o.DisplayName, failed, o.TokenCount, o.LatencyMs, o.Error, at.UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert call %s/%d: %w", runID, i, err)
		}
	}
	return tx.Commit()
}

// ForRun returns the calls of one run in slot order.
func (s *Store) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, slot, model_id, COALESCE(model_name, ''), failed,
		tokens, latency_ms, COALESCE(error, ''), ts FROM model_calls WHERE run_id = ? ORDER BY slot`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var failed int
		if err := rows.Scan(&e.RunID, &e.Slot, &e.ModelID, &e.ModelName, &failed, &e.Tokens, &e.LatencyMs, &e.Error, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Failed = failed != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats summarizes every model seen in the log, ordered by model id.
func (s *Store) Stats(ctx context.Context) ([]ModelStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT model_id, COALESCE(MAX(model_name), ''), COUNT(*),
		COALESCE(SUM(failed), 0), COALESCE(SUM(latency_ms), 0), COALESCE(SUM(tokens), 0)
		FROM model_calls GROUP BY model_id ORDER BY model_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ModelStats
	for rows.Next() {
		var st ModelStats
		var latencySum int64
		if err := rows.Scan(&st.ModelID, &st.ModelName, &st.Calls, &st.Failures, &latencySum, &st.TotalTokens); err != nil {
			return nil, err
		}
		st.SuccessRate, st.AvgLatencyMs = summarize(st.Calls, st.Failures, latencySum)
		out = append(out, st)
	}
	return out, rows.Err()
}

// summarize returns the success percentage (2 dp) and mean latency (1 dp).
func summarize(calls, failures, latencySum int64) (float64, float64) {
	if calls <= 0 {
		return 0, 0
	}
	n := decimal.NewFromInt(calls)
	rate := decimal.NewFromInt(calls - failures).Div(n).Mul(decimal.NewFromInt(100)).Round(2)
	avg := decimal.NewFromInt(latencySum).Div(n).Round(1)
	return rate.InexactFloat64(), avg.InexactFloat64()
}
