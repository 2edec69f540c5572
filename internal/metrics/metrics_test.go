package metrics

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dbmigration/ec2secrets/internal/secrets"
)

func resolve(t *testing.T, vars map[string]string) *secrets.Secrets {
	t.Helper()
	r := secrets.NewResolver(
		secrets.WithEnvironment(secrets.NewMapEnvironment(vars)),
		secrets.WithSearchDirs(filepath.Join(t.TempDir(), "none")),
	)
	return r.Resolve(secrets.Options{})
}

func TestCollectorObserve(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.Observe(resolve(t, map[string]string{"ADMIN_EMAIL": "ops@example.com", "APP_PORT": "bad"}))

	if got := testutil.ToFloat64(collector.resolves); got != 1 {
		t.Fatalf("expected 1 resolve, got %v", got)
	}
	if got := testutil.ToFloat64(collector.warnings); got != 1 {
		t.Fatalf("expected 1 warning, got %v", got)
	}
	if got := testutil.ToFloat64(collector.sectionPresent.WithLabelValues("admin")); got != 1 {
		t.Fatalf("expected admin present, got %v", got)
	}
	if got := testutil.ToFloat64(collector.sectionPresent.WithLabelValues("firebase")); got != 0 {
		t.Fatalf("expected firebase absent, got %v", got)
	}
	if got := testutil.ToFloat64(collector.sourceLoaded.WithLabelValues("env_file")); got != 0 {
		t.Fatalf("expected no env file, got %v", got)
	}

	collector.Observe(resolve(t, nil))
	if got := testutil.ToFloat64(collector.resolves); got != 2 {
		t.Fatalf("expected 2 resolves, got %v", got)
	}
	if got := testutil.ToFloat64(collector.sectionPresent.WithLabelValues("admin")); got != 0 {
		t.Fatalf("expected admin absent after second pass, got %v", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	collector := NewCollector(nil)
	collector.Observe(resolve(t, nil))

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"ec2secrets_resolves_total", `ec2secrets_section_present{section="aws"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
