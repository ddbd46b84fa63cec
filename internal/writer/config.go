package writer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WriterConfig holds batching configuration.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
	}
}

// WriterMetrics are the writer's running totals.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// Counters mirrors WriterMetrics into Prometheus. Nil counters are skipped.
type Counters struct {
	Written   prometheus.Counter
	Conflicts prometheus.Counter
	Flushes   prometheus.Counter
	Errors    prometheus.Counter
}

func add(c prometheus.Counter, n int) {
	if c != nil && n > 0 {
		c.Add(float64(n))
	}
}
