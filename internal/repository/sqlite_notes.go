package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wisefido-iv/internal/models"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteNotesSchema = `
	CREATE TABLE IF NOT EXISTS iv_notes (
		note_id    TEXT PRIMARY KEY,
		bed_id     INTEGER NOT NULL,
		text       TEXT NOT NULL,
		category   TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_iv_notes_bed_created ON iv_notes (bed_id, created_at DESC);
`

// SQLiteNoteStore 护理记录本地存储（无 PostgreSQL 时使用）
type SQLiteNoteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteNoteStore 打开或创建 SQLite 数据库；dbPath 为 ":memory:" 时使用内存库
func NewSQLiteNoteStore(dbPath string, logger *zap.Logger) (*SQLiteNoteStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 单连接：内存库每个连接是独立的数据库
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteNotesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteNoteStore{db: db, logger: logger}, nil
}

// Close 关闭数据库
func (s *SQLiteNoteStore) Close() error {
	return s.db.Close()
}

// AppendNote 追加护理记录
func (s *SQLiteNoteStore) AppendNote(ctx context.Context, bedID int, text, category string) error {
	noteID := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO iv_notes (note_id, bed_id, text, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		noteID, bedID, text, category, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	s.logger.Debug("Appended IV note",
		zap.Int("bed_id", bedID),
		zap.String("note_id", noteID),
	)
	return nil
}

// ListNotes 查询床位最近的护理记录（新的在前，同一时刻按 ULID 倒序）
func (s *SQLiteNoteStore) ListNotes(ctx context.Context, bedID int, limit int) ([]models.Note, error) {
	if limit <= 0 {
		limit = DefaultNoteLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, bed_id, text, category, created_at FROM iv_notes
		 WHERE bed_id = ? ORDER BY created_at DESC, note_id DESC LIMIT ?`,
		bedID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}
