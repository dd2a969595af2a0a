package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wisefido-iv/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

// ============================================
// 护理记录
// ============================================

func TestNoteRepository_AppendNote(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNoteRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO iv_notes`).
		WithArgs(sqlmock.AnyArg(), 3, "IV Alert: Flow too low", "iv_alert", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendNote(context.Background(), 3, "IV Alert: Flow too low", "iv_alert")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepository_AppendNote_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNoteRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO iv_notes`).WillReturnError(errors.New("connection refused"))

	err := repo.AppendNote(context.Background(), 3, "text", "iv_alert")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert note")
}

func TestNoteRepository_ListNotes(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNoteRepository(db, zap.NewNop())

	createdAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"note_id", "bed_id", "text", "category", "created_at"}).
		AddRow("01J0000000000000000000000B", 2, "IV Alert: b", "iv_alert", createdAt.Add(time.Minute)).
		AddRow("01J0000000000000000000000A", 2, "IV Alert: a", "iv_alert", createdAt)

	mock.ExpectQuery(`SELECT note_id, bed_id, text, category, created_at`).
		WithArgs(2, DefaultNoteLimit).
		WillReturnRows(rows)

	notes, err := repo.ListNotes(context.Background(), 2, 0)

	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "IV Alert: b", notes[0].Text)
	assert.Equal(t, createdAt, notes[1].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepository_EnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNoteRepository(db, zap.NewNop())

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS iv_notes`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 报警事件
// ============================================

func testRecord() models.AlertRecord {
	return models.AlertRecord{
		ID: "rec-1",
		AlertCandidate: models.AlertCandidate{
			BedID:     1,
			Category:  models.CategoryFlowRate,
			Severity:  models.SeverityCritical,
			Message:   "Flow too low (3 drops/min) - check line immediately",
			Actions:   []string{"check IV line"},
			Value:     3,
			Threshold: 5,
		},
		GeneratedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		State:       models.AckState{Status: models.AckPending},
		Delivery:    []models.Channel{models.ChannelBlocking},
	}
}

func TestAlertEventsRepository_SaveRecord(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewAlertEventsRepository(db, zap.NewNop())
	rec := testRecord()

	mock.ExpectExec(`INSERT INTO iv_alert_events`).
		WithArgs(
			"rec-1", 1, "flow_rate", "critical", rec.Message,
			[]byte(`["check IV line"]`), 3.0, 5.0, "pending",
			sqlmock.AnyArg(), []byte(`["blocking"]`), rec.GeneratedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveRecord(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertEventsRepository_UpdateRecordState(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewAlertEventsRepository(db, zap.NewNop())

	rec := testRecord()
	until := rec.GeneratedAt.Add(5 * time.Minute)
	rec.State = models.AckState{Status: models.AckSnoozed, SnoozedUntil: &until}

	mock.ExpectExec(`UPDATE iv_alert_events`).
		WithArgs("rec-1", "snoozed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRecordState(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertEventsRepository_UpdateRecordState_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewAlertEventsRepository(db, zap.NewNop())

	mock.ExpectExec(`UPDATE iv_alert_events`).
		WithArgs("rec-1", "acknowledged", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := testRecord()
	rec.State = models.AckState{Status: models.AckAcknowledged}
	err := repo.UpdateRecordState(context.Background(), rec)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAlertEventsRepository_ListBedAlerts(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewAlertEventsRepository(db, zap.NewNop())

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	generated := since.Add(8 * time.Hour)
	until := generated.Add(5 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"record_id", "bed_id", "category", "severity", "message", "actions",
		"value", "threshold", "status", "snoozed_until", "delivery", "generated_at",
	}).
		AddRow("rec-1", 1, "flow_rate", "critical", "Flow too low", []byte(`["check IV line"]`),
			3.0, 5.0, "snoozed", until, []byte(`["blocking","sound"]`), generated).
		AddRow("rec-2", 1, "time_remaining", "warning", "IV bag empties in 50 min - get ready", []byte(`[]`),
			50.0, 60.0, "pending", nil, []byte(`["transient"]`), generated.Add(time.Minute))

	mock.ExpectQuery(`FROM iv_alert_events`).
		WithArgs(1, since).
		WillReturnRows(rows)

	records, err := repo.ListBedAlerts(context.Background(), 1, since)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.CategoryFlowRate, records[0].Category)
	assert.Equal(t, models.AckSnoozed, records[0].State.Status)
	require.NotNil(t, records[0].State.SnoozedUntil)
	assert.Equal(t, until, *records[0].State.SnoozedUntil)
	assert.Equal(t, []string{"check IV line"}, records[0].Actions)
	assert.Equal(t, []models.Channel{models.ChannelBlocking, models.ChannelSound}, records[0].Delivery)
	assert.Nil(t, records[1].State.SnoozedUntil)
	assert.Equal(t, models.SeverityWarning, records[1].Severity)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// SQLite 护理记录
// ============================================

func TestSQLiteNoteStore_AppendAndList(t *testing.T) {
	store, err := NewSQLiteNoteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.AppendNote(ctx, 1, "IV Alert: first", "iv_alert"))
	require.NoError(t, store.AppendNote(ctx, 1, "IV Alert: second", "iv_alert"))
	require.NoError(t, store.AppendNote(ctx, 2, "IV Alert: other bed", "iv_alert"))

	notes, err := store.ListNotes(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "IV Alert: second", notes[0].Text)
	assert.Equal(t, "IV Alert: first", notes[1].Text)
	assert.Equal(t, "iv_alert", notes[0].Category)
	assert.Len(t, notes[0].ID, 26)
	assert.False(t, notes[0].CreatedAt.IsZero())

	limited, err := store.ListNotes(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteNoteStore_FileBacked(t *testing.T) {
	path := t.TempDir() + "/nested/iv.db"
	store, err := NewSQLiteNoteStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.AppendNote(context.Background(), 4, "IV Alert: persisted", "iv_alert"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteNoteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	notes, err := reopened.ListNotes(context.Background(), 4, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "IV Alert: persisted", notes[0].Text)
}
