// Package metrics exposes monitor activity as Prometheus metrics.
//
// Every method is safe to call on a nil *Collector, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dirwarden"

// Collector holds the monitor's metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	scans           prometheus.Counter
	inventoryFiles  prometheus.Gauge
	duplicates      prometheus.Gauge
	filesDeleted    prometheus.Counter
	bytesCleaned    prometheus.Counter
	backupFailures  prometheus.Counter
	deleteFailures  prometheus.Counter
	watchEvents     *prometheus.CounterVec
	cleanupDuration prometheus.Histogram
}

// New creates a Collector and registers its metrics. A nil registry gets a
// fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of directory inventory passes",
		}),
		inventoryFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inventory_files",
			Help:      "Number of regular files found by the latest scan",
		}),
		duplicates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicates",
			Help:      "Number of duplicate files found by the latest scan",
		}),
		filesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_deleted_total",
			Help:      "Total number of files backed up and deleted",
		}),
		bytesCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_cleaned_total",
			Help:      "Total bytes removed from the monitored directory",
		}),
		backupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_failures_total",
			Help:      "Total number of failed backups",
		}),
		deleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_failures_total",
			Help:      "Total number of failed deletions after a successful backup",
		}),
		watchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Filesystem notifications received, by operation",
		}, []string{"op"}),
		cleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cleanup_duration_seconds",
			Help:      "Duration of cleanup runs",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}

	registry.MustRegister(
		c.scans,
		c.inventoryFiles,
		c.duplicates,
		c.filesDeleted,
		c.bytesCleaned,
		c.backupFailures,
		c.deleteFailures,
		c.watchEvents,
		c.cleanupDuration,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveScan records one inventory pass and its duplicate count.
func (c *Collector) ObserveScan(files, duplicates int) {
	if c == nil {
		return
	}
	c.scans.Inc()
	c.inventoryFiles.Set(float64(files))
	c.duplicates.Set(float64(duplicates))
}

// FileDeleted records a successful backup-then-delete.
func (c *Collector) FileDeleted(bytes uint64) {
	if c == nil {
		return
	}
	c.filesDeleted.Inc()
	c.bytesCleaned.Add(float64(bytes))
}

// BackupFailed records a failed backup.
func (c *Collector) BackupFailed() {
	if c == nil {
		return
	}
	c.backupFailures.Inc()
}

// DeleteFailed records a failed delete.
func (c *Collector) DeleteFailed() {
	if c == nil {
		return
	}
	c.deleteFailures.Inc()
}

// WatchEvent records a filesystem notification. op is "created", "deleted"
// or "dropped".
func (c *Collector) WatchEvent(op string) {
	if c == nil {
		return
	}
	c.watchEvents.WithLabelValues(op).Inc()
}

// ObserveCleanup records the duration of one cleanup run.
func (c *Collector) ObserveCleanup(d time.Duration) {
	if c == nil {
		return
	}
	c.cleanupDuration.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Default().With("component", "metrics").Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
