// Package repository 持久化：护理记录（PostgreSQL / SQLite）与报警事件（PostgreSQL）
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-iv/internal/models"

	"go.uber.org/zap"
)

const alertEventsSchema = `
	CREATE TABLE IF NOT EXISTS iv_alert_events (
		record_id     TEXT PRIMARY KEY,
		bed_id        INTEGER NOT NULL,
		category      TEXT NOT NULL,
		severity      TEXT NOT NULL,
		message       TEXT NOT NULL,
		actions       JSONB NOT NULL DEFAULT '[]',
		value         DOUBLE PRECISION NOT NULL DEFAULT 0,
		threshold     DOUBLE PRECISION NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		snoozed_until TIMESTAMPTZ,
		delivery      JSONB NOT NULL DEFAULT '[]',
		generated_at  TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_iv_alert_events_bed_generated ON iv_alert_events (bed_id, generated_at);
`

// AlertEventsRepository 报警事件仓库（PostgreSQL）
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建报警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在时跳过）
func (r *AlertEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, alertEventsSchema); err != nil {
		return fmt.Errorf("failed to create iv_alert_events: %w", err)
	}
	return nil
}

// SaveRecord 写入报警记录（record_id 冲突时覆盖状态与投递通道）
func (r *AlertEventsRepository) SaveRecord(ctx context.Context, rec models.AlertRecord) error {
	actions, err := json.Marshal(nonNilStrings(rec.Actions))
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	delivery, err := json.Marshal(nonNilChannels(rec.Delivery))
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	query := `
		INSERT INTO iv_alert_events (
			record_id, bed_id, category, severity, message, actions,
			value, threshold, status, snoozed_until, delivery, generated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (record_id) DO UPDATE SET
			status = EXCLUDED.status,
			snoozed_until = EXCLUDED.snoozed_until,
			delivery = EXCLUDED.delivery,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.BedID,
		string(rec.Category),
		string(rec.Severity),
		rec.Message,
		actions,
		rec.Value,
		rec.Threshold,
		string(rec.State.Status),
		nullTime(rec.State.SnoozedUntil),
		delivery,
		rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	r.logger.Debug("Saved IV alert event",
		zap.String("record_id", rec.ID),
		zap.Int("bed_id", rec.BedID),
	)
	return nil
}

// UpdateRecordState 更新确认状态
func (r *AlertEventsRepository) UpdateRecordState(ctx context.Context, rec models.AlertRecord) error {
	query := `
		UPDATE iv_alert_events
		SET status = $2, snoozed_until = $3, updated_at = NOW()
		WHERE record_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, rec.ID, string(rec.State.Status), nullTime(rec.State.SnoozedUntil))
	if err != nil {
		return fmt.Errorf("failed to update alert event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert event not found: record_id=%s", rec.ID)
	}
	return nil
}

// ListBedAlerts 查询床位 since 之后的报警事件（按生成时间升序）
func (r *AlertEventsRepository) ListBedAlerts(ctx context.Context, bedID int, since time.Time) ([]models.AlertRecord, error) {
	query := `
		SELECT
			record_id, bed_id, category, severity, message, actions,
			value, threshold, status, snoozed_until, delivery, generated_at
		FROM iv_alert_events
		WHERE bed_id = $1
		  AND generated_at >= $2
		ORDER BY generated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, bedID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var category, severity, status string
		var actions, delivery []byte
		var snoozedUntil sql.NullTime

		if err := rows.Scan(
			&rec.ID,
			&rec.BedID,
			&category,
			&severity,
			&rec.Message,
			&actions,
			&rec.Value,
			&rec.Threshold,
			&status,
			&snoozedUntil,
			&delivery,
			&rec.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}

		rec.Category = models.Category(category)
		rec.Severity = models.Severity(severity)
		rec.State.Status = models.AckStatus(status)
		if snoozedUntil.Valid {
			t := snoozedUntil.Time
			rec.State.SnoozedUntil = &t
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &rec.Actions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
			}
		}
		if len(delivery) > 0 {
			if err := json.Unmarshal(delivery, &rec.Delivery); err != nil {
				return nil, fmt.Errorf("failed to unmarshal delivery: %w", err)
			}
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return records, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilChannels(c []models.Channel) []models.Channel {
	if c == nil {
		return []models.Channel{}
	}
	return c
}
