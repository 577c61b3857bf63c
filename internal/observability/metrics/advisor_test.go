package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

var _ ports.Telemetry = (*AdvisorMetrics)(nil)

func TestAdvisorMetricsCounts(t *testing.T) {
	m := NewAdvisorMetrics("test")

	m.RecordVerdict(domain.VerdictCovered)
	m.RecordVerdict(domain.VerdictCovered)
	m.RecordVerdict(domain.VerdictNotCovered)
	m.RecordTurn(domain.ModeGather)
	m.RecordKeywordDegraded()
	m.RecordRetry("ollama.embed", 1)
	m.RecordRetry("ollama.embed", 2)

	if got := testutil.ToFloat64(m.verdictsTotal.WithLabelValues("COVERED")); got != 2 {
		t.Fatalf("COVERED verdicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("GATHER")); got != 1 {
		t.Fatalf("GATHER turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.keywordDegraded); got != 1 {
		t.Fatalf("keyword degraded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("ollama.embed")); got != 2 {
		t.Fatalf("retries = %v, want 2", got)
	}
}

func TestDocumentProcessingTracksInFlight(t *testing.T) {
	m := NewAdvisorMetrics("test")

	m.StartDocument()
	m.StartDocument()
	if got := testutil.ToFloat64(m.processInFlight); got != 2 {
		t.Fatalf("in flight = %v, want 2", got)
	}
	m.FinishDocument(time.Second, nil)
	m.FinishDocument(time.Second, errors.New("embed failed"))
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	m.ObserveQueueLag(-time.Second)
	if got := testutil.CollectAndCount(m.queueLag); got != 1 {
		t.Fatalf("queue lag series = %d", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewAdvisorMetrics("test")
	m.ObserveRetrieval("semantic", 4, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `policy_advisor_retrieval_pass_results_count{pass="semantic",service="test"} 1`) {
		t.Fatalf("metrics output missing retrieval series:\n%s", body)
	}
}
