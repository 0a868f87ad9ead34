package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onexay/gitgraph/internal/config"
	"github.com/onexay/gitgraph/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		APIAddr:   "127.0.0.1:0",
		CacheSize: 4,
		Scan:      config.ScanConfig{Parallelism: 2},
		Storage:   storage.Options{Backend: storage.BackendMemory},
		Archive:   storage.ArchiveOptions{Backend: storage.ArchiveMemory},
	}
	srv, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)
	defer func() {
		if err := srv.Stop(context.Background()); err != nil {
			t.Fatalf("stop: %v", err)
		}
	}()
	h := srv.Handler()

	if code, body := get(t, h, "/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	if code, body := get(t, h, "/metrics"); code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics: %d", code)
	}
	if code, body := get(t, h, "/swagger/openapi.yaml"); code != http.StatusOK || !strings.Contains(body, "gitgraph API") {
		t.Fatalf("swagger: %d", code)
	}
	if code, _ := get(t, h, "/api/v1/commits?name=unknown"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown repository, got %d", code)
	}
	if code, _ := get(t, h, "/api/v1/commits"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without name, got %d", code)
	}
}

func TestServerRunAndStop(t *testing.T) {
	srv := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
