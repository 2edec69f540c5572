package application

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/dbmigration/ec2secrets/internal/config"
	"github.com/dbmigration/ec2secrets/internal/secrets"
)

func TestNewInitializesDependencies(t *testing.T) {
	dir := t.TempDir()
	cfg := baseTestConfig("127.0.0.1:0")
	cfg.Watch = true
	cfg.EnvFile = filepath.Join(dir, "app.env")

	app := newTestApp(t, cfg, map[string]string{"APP_MODE": "development"})

	if app.server == nil || app.router == nil || app.handler == nil || app.metrics == nil {
		t.Fatalf("expected server, router, handler and metrics to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.watcher == nil || !slices.Contains(app.watcher.Dirs(), dir) {
		t.Fatalf("expected watcher over %s", dir)
	}
	if app.Store().Loaded() {
		t.Fatalf("configuration must load lazily")
	}
	if mode := app.Store().Snapshot().App().Mode; mode != "development" {
		t.Fatalf("expected injected environment, got mode %q", mode)
	}
}

func TestNewWithoutWatch(t *testing.T) {
	app := newTestApp(t, baseTestConfig(":0"), nil)
	if app.watcher != nil {
		t.Fatalf("watcher must not be created when watching is off")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestBuildRootHandler(t *testing.T) {
	var hits []string
	record := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits = append(hits, name)
			w.WriteHeader(http.StatusNoContent)
		})
	}
	handler := BuildRootHandler(record("api"), record("metrics"))

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/api/health", http.StatusNoContent},
		{"/metrics", http.StatusNoContent},
		{"/", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, rec.Code)
		}
	}
	if want := []string{"api", "metrics"}; !slices.Equal(hits, want) {
		t.Fatalf("expected %v, got %v", want, hits)
	}
}

func TestReloadUpdatesMetrics(t *testing.T) {
	app := newTestApp(t, baseTestConfig(":0"), map[string]string{"ANTHROPIC_API_KEY": "sk-test"})

	app.Store().Snapshot()
	app.reload("test")()

	if got := app.Store().Generation(); got != 2 {
		t.Fatalf("expected generation 2, got %d", got)
	}

	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"ec2secrets_resolves_total 2",
		`ec2secrets_section_present{section="ANTHROPIC_API_KEY"} 1`,
		`ec2secrets_section_present{section="firebase"} 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestStartResolvesEagerly(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("APP_PORT=9000\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg := baseTestConfig("127.0.0.1:0")
	cfg.Watch = true
	cfg.EnvFile = envPath
	cfg.ReloadSchedule = "@every 1h"
	// background goroutines may log after the test returns
	app, err := New(cfg, zap.NewNop(), WithResolverOptions(
		secrets.WithEnvironment(secrets.NewMapEnvironment(nil)),
		secrets.WithSearchDirs(filepath.Join(t.TempDir(), "none")),
	))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = app.Server().Shutdown(shutdownCtx)
	})

	if !app.Store().Loaded() {
		t.Fatalf("Start must resolve the configuration")
	}
	if got := app.Store().Snapshot().App().Port; got != 9000 {
		t.Fatalf("expected port from env file, got %d", got)
	}
	if !app.scheduler.Running() {
		t.Fatalf("expected reload schedule to run")
	}

	select {
	case <-app.watcher.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not start")
	}

	if err := os.WriteFile(envPath, []byte("APP_PORT=9100\n"), 0o600); err != nil {
		t.Fatalf("rewrite env: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for app.Store().Snapshot().App().Port != 9100 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := app.Store().Snapshot().App().Port; got != 9100 {
		t.Fatalf("expected watcher-driven reload, port is %d", got)
	}
}

func newTestApp(t *testing.T, cfg config.Config, vars map[string]string) *App {
	t.Helper()

	app, err := New(cfg, zaptest.NewLogger(t), WithResolverOptions(
		secrets.WithEnvironment(secrets.NewMapEnvironment(vars)),
		secrets.WithSearchDirs(filepath.Join(t.TempDir(), "none")),
	))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return app
}

func baseTestConfig(addr string) config.Config {
	return config.Config{
		ListenAddr:           addr,
		WatchDebounce:        20 * time.Millisecond,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}
