package httpapi

import (
	"fmt"
	"net/http"

	"wisefido-iv/internal/metrics"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1/iv"

// NewRouter 注册全部路由；m 为空时不暴露 /metrics
func NewRouter(h *Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()

	route := func(path string, fn http.HandlerFunc, methods ...string) {
		r.Handle(path, m.WrapHandler(path, fn)).Methods(methods...)
	}

	bed := apiPrefix + "/beds/{bedId}"
	route(bed+"/monitoring", h.StartMonitoring, http.MethodPost)
	route(bed+"/monitoring", h.StopMonitoring, http.MethodDelete)
	route(bed, h.ClearBed, http.MethodDelete)
	route(bed+"/check", h.CheckBed, http.MethodPost)
	route(bed+"/acknowledge", h.Acknowledge, http.MethodPost)
	route(bed+"/snooze", h.Snooze, http.MethodPost)
	route(bed+"/alerts", h.Alerts, http.MethodGet)
	route(bed+"/alerts.xlsx", h.ExportAlerts, http.MethodGet)
	route(bed+"/reading", h.PutReading, http.MethodPut)
	route(bed+"/notes", h.Notes, http.MethodGet)

	route(apiPrefix+"/sessions", h.Sessions, http.MethodGet)
	route(apiPrefix+"/thresholds", h.Thresholds, http.MethodGet)
	route(apiPrefix+"/evaluate", h.Evaluate, http.MethodPost)
	route(apiPrefix+"/calculate", h.Calculate, http.MethodPost)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)(cors(r))
}

// recoveryLogger panic 日志写入 zap
type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("HTTP handler panic", zap.String("panic", fmt.Sprint(v...)))
}
