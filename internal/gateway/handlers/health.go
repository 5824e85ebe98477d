package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

var (
	startTime time.Time
	startOnce sync.Once
)

// InitStartTime records the server start time. Only the first call counts.
func InitStartTime() {
	startOnce.Do(func() {
		startTime = time.Now()
	})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model,omitempty"`
	Storage string `json:"storage,omitempty"`
	Uptime  int64  `json:"uptime"`
}

// HealthHandler returns a health check handler. When storage is set and
// cannot be pinged the status is "degraded" with a 503.
func HealthHandler(version, model string, storage Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Version: version, Model: model}
		if !startTime.IsZero() {
			resp.Uptime = int64(time.Since(startTime).Seconds())
		}

		status := http.StatusOK
		if storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := storage.PingContext(ctx); err != nil {
				resp.Status = "degraded"
				resp.Storage = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				resp.Storage = "ok"
			}
		}

		SendJSON(w, status, resp)
	}
}
