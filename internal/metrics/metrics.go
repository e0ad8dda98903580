package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seamcraft/internal/logging"
)

const namespace = "seamcraft"

var log = logging.New("metrics")

// Collectors groups every engine metric on a private registry so several
// engines (and tests) can coexist in one process.
type Collectors struct {
	Registry *prometheus.Registry

	Shifts *prometheus.CounterVec

	SectorsInstalled prometheus.Counter
	SectorsLoaded    prometheus.Counter
	GenerationStale  prometheus.Counter
	GenPending       prometheus.Gauge

	MeshSubmitted    prometheus.Counter
	MeshCoalesced    prometheus.Counter
	MeshDispatched   prometheus.Counter
	MeshBackpressure prometheus.Counter
	MeshDropped      *prometheus.CounterVec
	MeshQueueLength  prometheus.Gauge
	MeshInFlight     prometheus.Gauge

	AtmosphericFloods prometheus.Counter
	LightChanges      prometheus.Counter

	ColumnsCompiled prometheus.Counter
	ColumnsEmpty    prometheus.Counter
	ColumnsVisible  prometheus.Gauge
	UploadBytes     prometheus.Counter

	Edits *prometheus.CounterVec

	SaveFlushes prometheus.Counter
	SaveErrors  prometheus.Counter

	TickSeconds prometheus.Histogram
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func gauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

// New creates and registers all collectors.
func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		Shifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seamless", Name: "shifts_total",
			Help: "Grid rotations by axis and direction.",
		}, []string{"axis", "dir"}),

		SectorsInstalled: counter("world", "sectors_installed_total", "Sectors installed into the grid."),
		SectorsLoaded:    counter("world", "sectors_loaded_total", "Sectors restored from storage instead of generated."),
		GenerationStale:  counter("world", "generation_stale_total", "Generation results dropped because their slot moved on."),
		GenPending:       gauge("world", "generation_pending", "Sectors requested but not installed."),

		MeshSubmitted:    counter("meshing", "submitted_total", "Mesh requests added to the queue."),
		MeshCoalesced:    counter("meshing", "coalesced_total", "Mesh requests already covered by a queued entry."),
		MeshDispatched:   counter("meshing", "dispatched_total", "Snapshots handed to workers."),
		MeshBackpressure: counter("meshing", "backpressure_total", "Scheduler runs that found no free worker slot."),
		MeshDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "meshing", Name: "dropped_total",
			Help: "Mesh work discarded, by reason.",
		}, []string{"reason"}),
		MeshQueueLength: gauge("meshing", "queue_length", "Entries waiting in the mesh queue."),
		MeshInFlight:    gauge("meshing", "in_flight", "Worker slots currently held."),

		AtmosphericFloods: counter("lighting", "atmospheric_floods_total", "Sectors lit from scratch."),
		LightChanges:      counter("lighting", "cell_changes_total", "Cell light writes."),

		ColumnsCompiled: counter("columns", "compiled_total", "Column assemblies uploaded."),
		ColumnsEmpty:    counter("columns", "empty_total", "Column assemblies with no geometry."),
		ColumnsVisible:  gauge("columns", "visible", "Columns in the render queue."),
		UploadBytes:     counter("columns", "upload_bytes_total", "Bytes handed to the renderer."),

		Edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "edit", Name: "operations_total",
			Help: "World edits by operation and outcome.",
		}, []string{"op", "result"}),

		SaveFlushes: counter("storage", "flushes_total", "Sectors written to storage."),
		SaveErrors:  counter("storage", "errors_total", "Failed storage writes."),

		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "engine", Name: "tick_seconds",
			Help:    "Coordinator tick duration.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	c.Registry.MustRegister(
		c.Shifts,
		c.SectorsInstalled, c.SectorsLoaded, c.GenerationStale, c.GenPending,
		c.MeshSubmitted, c.MeshCoalesced, c.MeshDispatched, c.MeshBackpressure,
		c.MeshDropped, c.MeshQueueLength, c.MeshInFlight,
		c.AtmosphericFloods, c.LightChanges,
		c.ColumnsCompiled, c.ColumnsEmpty, c.ColumnsVisible, c.UploadBytes,
		c.Edits,
		c.SaveFlushes, c.SaveErrors,
		c.TickSeconds,
	)
	return c
}

// Handler serves the private registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// StartHTTP serves /metrics on addr in the background.
func (c *Collectors) StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("prometheus /metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}
