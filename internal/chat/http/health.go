package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/kv"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/httpx"
)

type healthChecks struct {
	Database string `json:"database,omitempty"`
	KV       string `json:"kv,omitempty"`
}

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

// LivezHandler always returns 200 while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports degraded with a 503 when the database or the kv
// store is unreachable.
func ReadyzHandler(startTime time.Time, version string, st store.Store, kvStore kv.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			KV:       "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if err := kvStore.Ping(r.Context()); err != nil {
			checks.KV = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
