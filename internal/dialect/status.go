package dialect

import (
	"net/http"
	"time"

	"github.com/oriys/microstack/internal/metrics"
)

// StatusResponse is the body served at GET /microstack/status, grounded on
// the teacher's SystemStatusResponse: health plus a point-in-time tally of
// the process's internal counters. It is not a Prometheus exposition
// format and carries no label cardinality — just the numbers the CLI
// status subcommand prints.
type StatusResponse struct {
	Status  string          `json:"status"`
	Uptime  string          `json:"uptime"`
	Metrics metrics.Summary `json:"metrics"`
}

// StatusHandler serves StatusResponse.
type StatusHandler struct {
	metrics   *metrics.Metrics
	startedAt time.Time
}

// NewStatusHandler builds a StatusHandler that reports tallies from m since
// the process started.
func NewStatusHandler(m *metrics.Metrics) *StatusHandler {
	return &StatusHandler{metrics: m, startedAt: time.Now()}
}

// ServeHTTP handles GET /microstack/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.metrics != nil {
		resp.Metrics = h.metrics.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}
