package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glycin-project/glycin/internal/pool"
)

type fakeHandle struct{ disconnected bool }

func (h *fakeHandle) Close() error       { return nil }
func (h *fakeHandle) Disconnected() bool { return h.disconnected }

func newTestMux(t *testing.T, p *pool.Pool) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(p, "").Register(mux)
	return mux
}

func TestLivenessAlwaysOK(t *testing.T) {
	p := pool.New(time.Hour, nil)
	defer p.Close()
	mux := newTestMux(t, p)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("got status field %v, want ok", body["status"])
	}
}

func TestReadinessReadyWhenPoolEmpty(t *testing.T) {
	p := pool.New(time.Hour, nil)
	defer p.Close()
	mux := newTestMux(t, p)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 for an empty pool", rec.Code)
	}
}

func TestReadinessNotReadyWhenFullySaturated(t *testing.T) {
	p := pool.New(time.Hour, nil)
	defer p.Close()

	spawner := func(ctx context.Context) (pool.Handle, error) { return &fakeHandle{}, nil }
	lease, err := p.Acquire(context.Background(), pool.KindLoader, pool.ConfigEntryHash{Exec: "k1"}, 1, spawner)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()

	mux := newTestMux(t, p)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503 when the only loader is saturated", rec.Code)
	}
}

func TestMetricsExposesPoolGauges(t *testing.T) {
	p := pool.New(time.Hour, nil)
	defer p.Close()

	spawner := func(ctx context.Context) (pool.Handle, error) { return &fakeHandle{}, nil }
	lease, err := p.Acquire(context.Background(), pool.KindLoader, pool.ConfigEntryHash{Exec: "k1"}, 2, spawner)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()

	mux := newTestMux(t, p)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "glycin_pool_busy_loaders 1") {
		t.Fatalf("expected busy_loaders=1 in metrics output, got:\n%s", body)
	}
	if !strings.Contains(body, "glycin_pool_spawns_total 1") {
		t.Fatalf("expected spawns_total=1 in metrics output, got:\n%s", body)
	}
}

func TestMetricsCustomPath(t *testing.T) {
	p := pool.New(time.Hour, nil)
	defer p.Close()
	mux := http.NewServeMux()
	NewHandler(p, "/custom-metrics").Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/custom-metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 on the configured metrics path", rec.Code)
	}
}
