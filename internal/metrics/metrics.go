// Package metrics provides Prometheus metrics for the ingestion stages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction metrics
	EntitiesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_entities_extracted_total",
			Help: "Total number of records extracted, by table",
		},
		[]string{"table"},
	)

	PatternMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_pattern_misses_total",
			Help: "Records whose type matched but whose attributes did not fit any layout",
		},
		[]string{"type"},
	)

	DecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifckit_decode_failures_total",
			Help: "Tokens kept verbatim because they could not be decoded",
		},
	)

	BytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifckit_bytes_read_total",
			Help: "Bytes read by the index pass",
		},
	)

	// Resolution metrics
	DanglingReferences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_dangling_references_total",
			Help: "Unresolved references, by diagnostics bucket",
		},
		[]string{"bucket"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ifckit_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// Geometry metrics
	MeshesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifckit_meshes_merged_total",
			Help: "Merged meshes produced by consolidation",
		},
	)

	SubMeshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifckit_submeshes_total",
			Help: "Per-entity geometries folded into merged meshes",
		},
	)

	SimplifyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_simplify_cache_total",
			Help: "Simplification cache lookups, by result",
		},
		[]string{"result"},
	)

	VerticesWelded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifckit_vertices_welded_total",
			Help: "Vertices removed by simplification",
		},
	)

	VisibilityRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_visibility_rebuilds_total",
			Help: "Debounced merged-mesh rebuilds, by outcome",
		},
		[]string{"outcome"},
	)

	// Persistence metrics
	ChunksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifckit_chunks_written_total",
			Help: "JSON chunks handed to the sink, by table",
		},
		[]string{"table"},
	)

	ChunkBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ifckit_chunk_bytes",
			Help:    "Size of JSON chunks handed to the sink",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"table"},
	)
)

// Cache results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Rebuild outcomes.
const (
	RebuildSwapped = "swapped"
	RebuildHidden  = "hidden"
)

// RecordExtraction records the table sizes and diagnostics of one parse.
func RecordExtraction(tables map[string]int, missesByType map[string]int, decodeFailures int, bytes int64) {
	for table, n := range tables {
		EntitiesExtracted.WithLabelValues(table).Add(float64(n))
	}
	for typ, n := range missesByType {
		PatternMisses.WithLabelValues(typ).Add(float64(n))
	}
	DecodeFailures.Add(float64(decodeFailures))
	BytesRead.Add(float64(bytes))
}

// RecordDangling records resolver diagnostics counts.
func RecordDangling(counts map[string]int) {
	for bucket, n := range counts {
		DanglingReferences.WithLabelValues(bucket).Add(float64(n))
	}
}

// RecordChunk records one chunk handed to a sink.
func RecordChunk(table string, size int) {
	ChunksWritten.WithLabelValues(table).Inc()
	ChunkBytes.WithLabelValues(table).Observe(float64(size))
}

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Timer is a helper for measuring stage durations.
type Timer struct {
	stage string
	start time.Time
}

// NewTimer starts timing a stage.
func NewTimer(stage string) *Timer {
	return &Timer{stage: stage, start: time.Now()}
}

// Stop observes and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	ObserveStage(t.stage, d)
	return d
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
