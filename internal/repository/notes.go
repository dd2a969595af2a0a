package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-iv/internal/models"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultNoteLimit 查询护理记录的默认条数
const DefaultNoteLimit = 100

const notesSchema = `
	CREATE TABLE IF NOT EXISTS iv_notes (
		note_id    TEXT PRIMARY KEY,
		bed_id     INTEGER NOT NULL,
		text       TEXT NOT NULL,
		category   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_iv_notes_bed_created ON iv_notes (bed_id, created_at DESC);
`

// NoteRepository 护理记录仓库（PostgreSQL）
type NoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNoteRepository 创建护理记录仓库
func NewNoteRepository(db *sql.DB, logger *zap.Logger) *NoteRepository {
	return &NoteRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在时跳过）
func (r *NoteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, notesSchema); err != nil {
		return fmt.Errorf("failed to create iv_notes: %w", err)
	}
	return nil
}

// AppendNote 追加护理记录
func (r *NoteRepository) AppendNote(ctx context.Context, bedID int, text, category string) error {
	query := `
		INSERT INTO iv_notes (note_id, bed_id, text, category, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	noteID := ulid.Make().String()
	if _, err := r.db.ExecContext(ctx, query, noteID, bedID, text, category, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	r.logger.Debug("Appended IV note",
		zap.Int("bed_id", bedID),
		zap.String("note_id", noteID),
		zap.String("category", category),
	)
	return nil
}

// ListNotes 查询床位最近的护理记录（新的在前）
func (r *NoteRepository) ListNotes(ctx context.Context, bedID int, limit int) ([]models.Note, error) {
	if limit <= 0 {
		limit = DefaultNoteLimit
	}

	query := `
		SELECT note_id, bed_id, text, category, created_at
		FROM iv_notes
		WHERE bed_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, bedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	var notes []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.BedID, &n.Text, &n.Category, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}
