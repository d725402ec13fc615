package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion results used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversion",
		Name:      "total",
		Help:      "Finished conversions by result",
	}, []string{"result"})

	conversionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "conversion",
		Name:      "duration_seconds",
		Help:      "Time from Convert until the PDF stream ended",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"result"})

	conversionBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "conversion",
		Name:      "output_bytes",
		Help:      "Size of generated PDFs",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	conversionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "conversion",
		Name:      "in_flight",
		Help:      "Conversions currently streaming",
	})

	// Local totals for the /api/pool response.
	totals   ConversionTotals
	totalsMu sync.RWMutex
)

// ConversionTotals holds cumulative conversion counts since start.
type ConversionTotals struct {
	Succeeded  uint64
	Failed     uint64
	BytesTotal uint64
}

// ConversionStarted marks a conversion as in flight.
func ConversionStarted() {
	conversionsInFlight.Inc()
}

// ConversionFinished records the outcome of a conversion started with
// ConversionStarted.
func ConversionFinished(success bool, elapsed time.Duration, bytes int64) {
	conversionsInFlight.Dec()

	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	conversionsTotal.WithLabelValues(result).Inc()
	conversionDuration.WithLabelValues(result).Observe(elapsed.Seconds())

	totalsMu.Lock()
	defer totalsMu.Unlock()
	if success {
		conversionBytes.Observe(float64(bytes))
		totals.Succeeded++
		totals.BytesTotal += uint64(max(bytes, 0))
	} else {
		totals.Failed++
	}
}

// GetConversionTotals returns the cumulative conversion counts.
func GetConversionTotals() ConversionTotals {
	totalsMu.RLock()
	defer totalsMu.RUnlock()
	return totals
}
