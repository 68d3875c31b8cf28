// Package diag implements glycind's diagnostics HTTP surface (A4):
// /healthz, /readyz, and a Prometheus /metrics endpoint reporting pool
// occupancy. Grounded directly on the teacher's internal/server/
// health.go and metrics.go, trimmed to the handlers relevant to a
// process-pool daemon — no TLS/ACME/HTTP3/websocket/compression
// middleware, since those are maboo's reverse-proxy concerns and have
// no analogue in a sandboxing image-decode library.
package diag

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/glycin-project/glycin/internal/pool"
)

var startTime = time.Now()

// Handler serves /healthz, /readyz, and /metrics against a single pool.
type Handler struct {
	pool        *pool.Pool
	metricsPath string
}

// NewHandler builds a diagnostics Handler. metricsPath is the path the
// caller has configured (diagnostics.metrics_path); passing "" defaults
// to "/metrics".
func NewHandler(p *pool.Pool, metricsPath string) *Handler {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Handler{pool: p, metricsPath: metricsPath}
}

// Register mounts the handler's three endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.liveness)
	mux.HandleFunc("/readyz", h.readiness)
	mux.HandleFunc(h.metricsPath, h.metrics)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

// readiness reports ready iff at least one pool slot is not saturated
// (an idle loader or editor exists), or trivially ready if the pool is
// empty: an empty pool has no saturated slot to block a new request, a
// cold spawn will simply pay fork+sandbox latency on demand.
func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	stats := h.pool.Stats()
	total := stats.Loaders + stats.Editors
	ready := total == 0 || stats.IdleLoaders > 0 || stats.IdleEditors > 0

	status := http.StatusOK
	statusStr := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusStr = "not_ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":         statusStr,
		"uptime_seconds": time.Since(startTime).Seconds(),
		"pool": map[string]any{
			"loaders":      stats.Loaders,
			"editors":      stats.Editors,
			"busy_loaders": stats.BusyLoaders,
			"idle_loaders": stats.IdleLoaders,
			"busy_editors": stats.BusyEditors,
			"idle_editors": stats.IdleEditors,
		},
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var b strings.Builder
	stats := h.pool.Stats()

	writeGauge(&b, "glycin_pool_loaders", "Tracked loader helper processes.", float64(stats.Loaders))
	writeGauge(&b, "glycin_pool_editors", "Tracked editor helper processes.", float64(stats.Editors))
	writeGauge(&b, "glycin_pool_busy_loaders", "Loader helpers currently serving a request.", float64(stats.BusyLoaders))
	writeGauge(&b, "glycin_pool_idle_loaders", "Loader helpers currently idle.", float64(stats.IdleLoaders))
	writeGauge(&b, "glycin_pool_busy_editors", "Editor helpers currently serving a request.", float64(stats.BusyEditors))
	writeGauge(&b, "glycin_pool_idle_editors", "Editor helpers currently idle.", float64(stats.IdleEditors))
	writeCounter(&b, "glycin_pool_spawns_total", "Total helper processes spawned.", float64(stats.Spawns))
	writeCounter(&b, "glycin_pool_evictions_total", "Total idle helper processes evicted by the sweep.", float64(stats.Evictions))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeGauge(&b, "glycin_go_goroutines", "Number of goroutines.", float64(runtime.NumGoroutine()))
	writeGauge(&b, "glycin_go_memstats_alloc_bytes", "Number of bytes allocated.", float64(mem.Alloc))

	w.Write([]byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, value)
}

func writeCounter(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n%s %v\n", name, help, name, name, value)
}
