package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test-op", "200"))
	RecordAPIRequest("test-op", 200, 0.1)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test-op", "200"))
	if after != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, after)
	}

	beforeErr := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test-op", "error"))
	RecordAPIRequest("test-op", 0, 0.1)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test-op", "error")); got != beforeErr+1 {
		t.Fatalf("expected transport failures to be labelled error, got %v", got)
	}
}

func TestRecordCacheLookups(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("metrics-test", "hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("metrics-test", "miss"))

	RecordCacheHit("metrics-test")
	RecordCacheHit("metrics-test")
	RecordCacheMiss("metrics-test")

	if got := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("metrics-test", "hit")); got != hits+2 {
		t.Fatalf("expected 2 more hits, got %v", got-hits)
	}
	if got := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("metrics-test", "miss")); got != misses+1 {
		t.Fatalf("expected 1 more miss, got %v", got-misses)
	}
}
