package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(ocrPasses.WithLabelValues("sparse", "ok"))
	IncOCRPass("sparse", "ok")
	IncOCRPass("sparse", "ok")
	if got := testutil.ToFloat64(ocrPasses.WithLabelValues("sparse", "ok")) - before; got != 2 {
		t.Fatalf("ocr passes delta = %v, want 2", got)
	}

	IncJobsInflight()
	IncJobsInflight()
	DecJobsInflight()
	if got := testutil.ToFloat64(jobsInflight); got != 1 {
		t.Fatalf("inflight = %v, want 1", got)
	}
	DecJobsInflight()
}

func TestHandlerExposesNamespace(t *testing.T) {
	Init()
	IncPage("native")
	ObserveExtraction("success", 1500*time.Millisecond)
	ObserveProcess("tesseract", "ok", 200*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`pdfdocx_pages_total{source="native"}`,
		`pdfdocx_extractions_total{result="success"}`,
		`pdfdocx_external_process_seconds_count{result="ok",tool="tesseract"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
