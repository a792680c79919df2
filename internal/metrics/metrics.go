package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfdocx",
			Name:      "pages_total",
			Help:      "Pages extracted, labeled by text source (native, ocr, merged)",
		},
		[]string{"source"},
	)

	ocrPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfdocx",
			Name:      "ocr_passes_total",
			Help:      "OCR engine passes by pass and result",
		},
		[]string{"pass", "result"},
	)

	escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfdocx",
			Name:      "escalations_total",
			Help:      "Pages escalated to intensive OCR passes, by profile",
		},
		[]string{"profile"},
	)

	extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfdocx",
			Name:      "extractions_total",
			Help:      "Extraction requests by result code",
		},
		[]string{"result"},
	)

	extractionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfdocx",
			Name:      "extraction_duration_seconds",
			Help:      "Duration of whole extraction requests",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	processLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfdocx",
			Name:      "external_process_seconds",
			Help:      "Duration of external tool invocations by tool and result",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool", "result"},
	)

	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfdocx",
			Name:      "jobs_inflight",
			Help:      "Extraction jobs currently running in the service",
		},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(pagesTotal, ocrPasses, escalations, extractions, extractionLatency, processLatency, jobsInflight)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncPage(source string) { pagesTotal.WithLabelValues(source).Inc() }
func IncOCRPass(pass, result string) { ocrPasses.WithLabelValues(pass, result).Inc() }
func IncEscalation(profile string) { escalations.WithLabelValues(profile).Inc() }
func IncJobsInflight() { jobsInflight.Inc() }
func DecJobsInflight() { jobsInflight.Dec() }

// ObserveExtraction records one finished request; result is "success" or an error code.
func ObserveExtraction(result string, dur time.Duration) {
	extractions.WithLabelValues(result).Inc()
	extractionLatency.Observe(dur.Seconds())
}

func ObserveProcess(tool, result string, dur time.Duration) {
	processLatency.WithLabelValues(tool, result).Observe(dur.Seconds())
}
