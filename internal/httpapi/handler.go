// Package httpapi 输液监测 HTTP 接口
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wisefido-iv/internal/converter"
	"wisefido-iv/internal/evaluator"
	"wisefido-iv/internal/models"
	"wisefido-iv/internal/report"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Monitor 床位监测（monitor.Supervisor）
type Monitor interface {
	MaxBeds() int
	Thresholds() models.SafetyThresholds
	StartMonitoring(bedID int) error
	StopMonitoring(ctx context.Context, bedID int) bool
	ClearBed(ctx context.Context, bedID int) error
	Sessions() []models.MonitoringSession
	EvaluateNow(reading models.BedReading, thresholds models.SafetyThresholds) []models.AlertCandidate
	CheckBed(ctx context.Context, bedID int) ([]models.AlertCandidate, error)
}

// Alerts 报警确认与记录（dispatcher.Dispatcher）
type Alerts interface {
	Acknowledge(ctx context.Context, bedID int) int
	Snooze(ctx context.Context, bedID int, minutes int) (int, error)
	Records(bedID int) []models.AlertRecord
}

// Calculator 床旁计算（evaluator.Evaluator）
type Calculator interface {
	Calculate(in evaluator.CalculationInput, thresholds models.SafetyThresholds, now time.Time) evaluator.CalculationResult
}

// ReadingWriter 读数写入（consumer.ReadingCache）
type ReadingWriter interface {
	PutBedReading(ctx context.Context, reading models.BedReading, ttl time.Duration) error
}

// AlertSnapshot 活动报警快照（consumer.AlertCache），本进程无记录时回退读取
type AlertSnapshot interface {
	GetBedAlerts(ctx context.Context, bedID int) ([]models.AlertRecord, error)
}

// AlertHistory 报警历史（repository.AlertEventsRepository）
type AlertHistory interface {
	ListBedAlerts(ctx context.Context, bedID int, since time.Time) ([]models.AlertRecord, error)
}

// NoteLister 护理记录查询
type NoteLister interface {
	ListNotes(ctx context.Context, bedID int, limit int) ([]models.Note, error)
}

// Deps 接口依赖；Readings / Snapshots / History / Notes 可为空
type Deps struct {
	Monitor    Monitor
	Alerts     Alerts
	Calculator Calculator
	Readings   ReadingWriter
	Snapshots  AlertSnapshot
	History    AlertHistory
	Notes      NoteLister
	Clock      clock.Clock
	ReadingTTL time.Duration
}

const (
	defaultExportWindow = 24 * time.Hour
	defaultNoteLimit    = 100
)

// Handler 输液监测接口
type Handler struct {
	deps   Deps
	clock  clock.Clock
	logger *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{deps: deps, clock: clk, logger: logger}
}

func (h *Handler) bed(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := bedID(r, h.deps.Monitor.MaxBeds())
	if err != nil {
		writeError(w, err)
		return 0, false
	}
	return id, true
}

// StartMonitoring POST /beds/{bedId}/monitoring
func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	if err := h.deps.Monitor.StartMonitoring(bed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"bed_id": bed, "monitoring": true}))
}

// StopMonitoring DELETE /beds/{bedId}/monitoring
func (h *Handler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	stopped := h.deps.Monitor.StopMonitoring(r.Context(), bed)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"bed_id": bed, "stopped": stopped}))
}

// ClearBed DELETE /beds/{bedId}
func (h *Handler) ClearBed(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	if err := h.deps.Monitor.ClearBed(r.Context(), bed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"bed_id": bed, "cleared": true}))
}

// CheckBed POST /beds/{bedId}/check
func (h *Handler) CheckBed(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	candidates, err := h.deps.Monitor.CheckBed(r.Context(), bed)
	if err != nil {
		writeError(w, err)
		return
	}
	if candidates == nil {
		candidates = []models.AlertCandidate{}
	}
	writeJSON(w, http.StatusOK, Ok(candidates))
}

// Acknowledge POST /beds/{bedId}/acknowledge
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	n := h.deps.Alerts.Acknowledge(r.Context(), bed)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"bed_id": bed, "acknowledged": n}))
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

// Snooze POST /beds/{bedId}/snooze {"minutes":5}
func (h *Handler) Snooze(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	var req snoozeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.deps.Alerts.Snooze(r.Context(), bed, req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"bed_id": bed, "snoozed": n, "minutes": req.Minutes}))
}

// Alerts GET /beds/{bedId}/alerts
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	records := h.deps.Alerts.Records(bed)
	if len(records) == 0 && h.deps.Snapshots != nil {
		cached, err := h.deps.Snapshots.GetBedAlerts(r.Context(), bed)
		if err != nil {
			h.logger.Warn("Failed to read alert snapshot", zap.Int("bed_id", bed), zap.Error(err))
		} else {
			records = cached
		}
	}
	if records == nil {
		records = []models.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, Ok(records))
}

// ExportAlerts GET /beds/{bedId}/alerts.xlsx?since=24h
func (h *Handler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}

	records := h.deps.Alerts.Records(bed)
	if h.deps.History != nil {
		since, err := report.Since(h.clock.Now(), r.URL.Query().Get("since"), defaultExportWindow)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		records, err = h.deps.History.ListBedAlerts(r.Context(), bed, since)
		if err != nil {
			h.logger.Error("Failed to list alert history", zap.Int("bed_id", bed), zap.Error(err))
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bed-%d-alerts.xlsx"`, bed))
	if err := report.WriteAlertWorkbook(w, bed, records); err != nil {
		h.logger.Error("Failed to write alert workbook", zap.Int("bed_id", bed), zap.Error(err))
	}
}

// PutReading PUT /beds/{bedId}/reading
func (h *Handler) PutReading(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	if h.deps.Readings == nil {
		writeJSON(w, http.StatusNotImplemented, Fail("reading cache not configured"))
		return
	}
	var reading models.BedReading
	if err := readBodyJSON(r, maxBodyBytes, &reading); err != nil {
		writeError(w, err)
		return
	}
	reading.BedID = bed
	if reading.DropFactor != 0 && !converter.IsStandardDropFactor(reading.DropFactor) {
		writeError(w, fmt.Errorf("%w: unsupported drop_factor %d", errBadRequest, reading.DropFactor))
		return
	}
	reading.ApplyDefaults()
	if reading.SampledAt.IsZero() {
		reading.SampledAt = h.clock.Now()
	}
	if err := h.deps.Readings.PutBedReading(r.Context(), reading, h.deps.ReadingTTL); err != nil {
		h.logger.Error("Failed to store bed reading", zap.Int("bed_id", bed), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reading))
}

// Notes GET /beds/{bedId}/notes?limit=100
func (h *Handler) Notes(w http.ResponseWriter, r *http.Request) {
	bed, ok := h.bed(w, r)
	if !ok {
		return
	}
	if h.deps.Notes == nil {
		writeJSON(w, http.StatusOK, Ok([]models.Note{}))
		return
	}
	notes, err := h.deps.Notes.ListNotes(r.Context(), bed, parseInt(r.URL.Query().Get("limit"), defaultNoteLimit))
	if err != nil {
		writeError(w, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, Ok(notes))
}

// Sessions GET /sessions
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.deps.Monitor.Sessions()))
}

// Thresholds GET /thresholds
func (h *Handler) Thresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.deps.Monitor.Thresholds()))
}

type evaluateRequest struct {
	Reading    models.BedReading        `json:"reading"`
	Thresholds *models.SafetyThresholds `json:"thresholds,omitempty"`
}

// Evaluate POST /evaluate（只评估，不投递）
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	thresholds := h.deps.Monitor.Thresholds()
	if req.Thresholds != nil {
		if err := req.Thresholds.Validate(); err != nil {
			writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		thresholds = *req.Thresholds
	}
	candidates := h.deps.Monitor.EvaluateNow(req.Reading, thresholds)
	if candidates == nil {
		candidates = []models.AlertCandidate{}
	}
	writeJSON(w, http.StatusOK, Ok(candidates))
}

// Calculate POST /calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var in evaluator.CalculationInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.BedID != 0 && (in.BedID < 1 || in.BedID > h.deps.Monitor.MaxBeds()) {
		writeError(w, fmt.Errorf("%w: %d", errBadRequest, in.BedID))
		return
	}
	result := h.deps.Calculator.Calculate(in, h.deps.Monitor.Thresholds(), h.clock.Now())
	writeJSON(w, http.StatusOK, Ok(result))
}

// Health GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":   "ok",
		"sessions": len(h.deps.Monitor.Sessions()),
	}))
}
