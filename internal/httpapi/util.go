package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"wisefido-iv/internal/dispatcher"
	"wisefido-iv/internal/monitor"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 校验类错误 → 400，其余 → 500
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, monitor.ErrInvalidBed),
		errors.Is(err, dispatcher.ErrInvalidSnooze):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, Fail(err.Error()))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// bedID 解析路径中的 bedId 并校验范围
func bedID(r *http.Request, maxBeds int) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["bedId"])
	if err != nil || id < 1 || id > maxBeds {
		return 0, fmt.Errorf("%w: %q (1..%d)", monitor.ErrInvalidBed, mux.Vars(r)["bedId"], maxBeds)
	}
	return id, nil
}
