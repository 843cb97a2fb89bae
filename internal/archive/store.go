// Package archive persists the delivery target chat and a record of
// every delivered report in SQLite.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"reportbot/internal/domain"
)

const targetChatKey = "target_chat_id"

// Store implements domain.TargetStore and domain.ReportArchive using SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key    TEXT PRIMARY KEY,
		value  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id          TEXT PRIMARY KEY,
		category    TEXT NOT NULL,
		title       TEXT,
		author      TEXT,
		body        TEXT,
		photos      INTEGER DEFAULT 0,
		clips       INTEGER DEFAULT 0,
		chat_id     INTEGER NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_time ON reports(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// TargetChat returns the persisted target chat id, or ok=false when no
// target has been configured yet.
func (s *Store) TargetChat(ctx context.Context) (int64, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, targetChatKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	chatID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt target chat value %q: %w", value, err)
	}
	return chatID, true, nil
}

// SetTargetChat persists chatID as the delivery target.
func (s *Store) SetTargetChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		targetChatKey, strconv.FormatInt(chatID, 10),
	)
	return err
}

// SaveReport records one delivered report. An empty ID is assigned.
func (s *Store) SaveReport(ctx context.Context, r domain.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, category, title, author, body, photos, clips, chat_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Category, r.Title, r.Author, r.Body, r.Photos, r.Clips, r.ChatID, r.CreatedAt,
	)
	return err
}

// RecentReports returns the most recently delivered reports, newest first.
func (s *Store) RecentReports(ctx context.Context, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, title, author, body, photos, clips, chat_id, created_at
		 FROM reports ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var r domain.Report
		if err := rows.Scan(&r.ID, &r.Category, &r.Title, &r.Author, &r.Body,
			&r.Photos, &r.Clips, &r.ChatID, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
