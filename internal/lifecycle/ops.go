package lifecycle

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/savos-bot/internal/middleware"
	"github.com/Proton-105/savos-bot/pkg/logger"
)

type statusResponse struct {
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// NewOpsRouter serves /metrics, /healthz and /readyz for the operations port.
func NewOpsRouter(probes *Probes, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(logger.Middleware, middleware.HTTPLogging(log))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := probes.Liveness(req.Context()); err != nil {
			writeStatus(w, log, http.StatusServiceUnavailable, statusResponse{Status: "down", Error: err.Error()})
			return
		}
		writeStatus(w, log, http.StatusOK, statusResponse{Status: "ok"})
	}).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		report := probes.Report(req.Context())
		resp := statusResponse{Status: "ready", Components: report.Components}
		code := http.StatusOK
		if err := probes.Readiness(req.Context()); err != nil {
			resp.Status = "not_ready"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, log, code, resp)
	}).Methods(http.MethodGet, http.MethodHead)

	return r
}

func writeStatus(w http.ResponseWriter, log *slog.Logger, code int, resp statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn("failed to write probe response", slog.Any("error", err))
	}
}
