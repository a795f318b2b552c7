package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHistory(t *testing.T) {
	before := testutil.ToFloat64(HistoryRequests.WithLabelValues("test", ResultOK))
	ObserveHistory("test", ResultOK, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HistoryRequests.WithLabelValues("test", ResultOK)))

	stale := testutil.ToFloat64(HistoryRequests.WithLabelValues("test", ResultStale))
	ObserveHistory("test", ResultStale, time.Second)
	assert.Equal(t, stale+1, testutil.ToFloat64(HistoryRequests.WithLabelValues("test", ResultStale)))
}

func TestDropQuote(t *testing.T) {
	before := testutil.ToFloat64(QuotesDropped.WithLabelValues("not_loaded"))
	DropQuote("not_loaded")
	assert.Equal(t, before+1, testutil.ToFloat64(QuotesDropped.WithLabelValues("not_loaded")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	RealtimeBars.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "chartfeed_realtime_bars_total"))
}
