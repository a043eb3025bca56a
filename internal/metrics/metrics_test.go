package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGeneration(t *testing.T) {
	before := testutil.ToFloat64(GenerationsTotal.WithLabelValues("text", OutcomeSucceeded))
	ObserveGeneration("text", OutcomeSucceeded, 1500*time.Millisecond)
	after := testutil.ToFloat64(GenerationsTotal.WithLabelValues("text", OutcomeSucceeded))
	if after-before != 1 {
		t.Fatalf("counter moved by %v, want 1", after-before)
	}
}

func TestObserveInvalidSkipsHistogram(t *testing.T) {
	before := testutil.CollectAndCount(GenerationDuration)
	ObserveGeneration("test-kind", OutcomeInvalid, time.Second)
	if got := testutil.CollectAndCount(GenerationDuration); got != before {
		t.Fatalf("histogram series changed from %d to %d", before, got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	GeneratedWords.WithLabelValues("story").Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `contentgen_generated_words_total{template="story"}`) {
		t.Fatal("generated words counter missing from exposition")
	}
}
