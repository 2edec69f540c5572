// Package metrics exposes Prometheus metrics about configuration resolution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbmigration/ec2secrets/internal/secrets"
)

const namespace = "ec2secrets"

// trackedSections are reported by the section_present gauge, present or not.
var trackedSections = []string{
	secrets.KeyAnthropicAPIKey,
	secrets.KeyFirebase,
	secrets.KeyAdmin,
	secrets.KeyAWS,
	secrets.KeyApp,
}

// Collector records resolution outcomes into its own registry.
type Collector struct {
	registry *prometheus.Registry

	resolves       prometheus.Counter
	warnings       prometheus.Counter
	lastResolve    prometheus.Gauge
	sectionPresent *prometheus.GaugeVec
	sourceLoaded   *prometheus.GaugeVec
}

// NewCollector registers the resolution metrics. A nil registry gets a fresh
// one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		resolves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Number of configuration resolution passes.",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_warnings_total",
			Help:      "Non-fatal problems met while resolving configuration.",
		}),
		lastResolve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_resolve_timestamp_seconds",
			Help:      "Unix time of the most recent resolution pass.",
		}),
		sectionPresent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "section_present",
			Help:      "Whether a top-level configuration section is present (1) or not (0).",
		}, []string{"section"}),
		sourceLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_loaded",
			Help:      "Whether a file source was loaded in the last pass.",
		}, []string{"source"}),
	}

	registry.MustRegister(c.resolves, c.warnings, c.lastResolve, c.sectionPresent, c.sourceLoaded)
	return c
}

// Observe records one resolved snapshot. It matches storage.ReloadHook.
func (c *Collector) Observe(s *secrets.Secrets) {
	c.resolves.Inc()
	c.warnings.Add(float64(len(s.Warnings())))
	c.lastResolve.Set(float64(s.LoadedAt().Unix()))

	for _, section := range trackedSections {
		c.sectionPresent.WithLabelValues(section).Set(boolToFloat(s.Contains(section)))
	}
	src := s.Sources()
	c.sourceLoaded.WithLabelValues("env_file").Set(boolToFloat(src.EnvFile != ""))
	c.sourceLoaded.WithLabelValues("firebase_config").Set(boolToFloat(src.ConfigFile != ""))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
