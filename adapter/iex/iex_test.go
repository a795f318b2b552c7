package iex

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
)

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	a := New(Config{BaseURL: ts.URL, Token: "tok", QuoteInterval: 10 * time.Millisecond}, zap.NewNop())
	t.Cleanup(func() { a.Close() })
	return a
}

func TestHistoryUsesRangeTable(t *testing.T) {
	var gotPath, gotToken string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		io.WriteString(w, `[
			{"date":"2024-01-02","minute":"09:30","open":10,"high":11,"low":9,"close":10.5,"volume":100},
			{"date":"2024-01-02","minute":"09:31","open":10.5,"high":10.8,"low":10.3,"close":10.6,"volume":50}
		]`)
	})

	recs, err := a.History(context.Background(), "AAPL", bar.Resolution10)
	require.NoError(t, err)
	assert.Equal(t, "/stock/AAPL/chart/5dm", gotPath)
	assert.Equal(t, "tok", gotToken)
	require.Len(t, recs, 2)
	assert.Equal(t, "09:31", recs[1].Minute)
	assert.Equal(t, 10.6, recs[1].Close)
	assert.Zero(t, recs[1].Timestamp)
}

func TestHistoryNullPayload(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `null`)
	})
	recs, err := a.History(context.Background(), "AAPL", bar.ResolutionD)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHistoryErrors(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unknown symbol", http.StatusNotFound)
	})

	_, err := a.History(context.Background(), "NOPE", bar.Resolution30)
	assert.ErrorContains(t, err, "404")

	_, err = a.History(context.Background(), "AAPL", bar.Resolution5)
	assert.ErrorIs(t, err, adapter.ErrUnsupportedResolution)
}

func TestSymbols(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ref-data/symbols", r.URL.Path)
		io.WriteString(w, `[{"symbol":"AAPL","name":"Apple Inc.","exchange":"NAS","type":"cs"}]`)
	})
	entries, err := a.Symbols(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Apple Inc.", entries[0].Name)
}

func TestSubscribeQuotesPublishesChanges(t *testing.T) {
	var n atomic.Int32
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		// The first two polls return the same snapshot.
		if n.Add(1) <= 2 {
			io.WriteString(w, `{"symbol":"AAPL","latestPrice":10,"latestVolume":5,"lastTradeTime":1}`)
			return
		}
		io.WriteString(w, `{"symbol":"AAPL","latestPrice":11,"latestVolume":6,"lastTradeTime":2}`)
	})

	got := make(chan quote.Quote, 8)
	tok, err := a.SubscribeQuotes("AAPL", func(q quote.Quote) { got <- q })
	require.NoError(t, err)
	defer tok.Unsubscribe()

	first := <-got
	second := <-got
	assert.Equal(t, 10.0, first.LatestPrice)
	assert.Equal(t, 5.0, first.Volume)
	assert.Equal(t, 11.0, second.LatestPrice)
	assert.Equal(t, int64(2), second.LastTradeTime)
	assert.GreaterOrEqual(t, n.Load(), int32(3))
}

func TestSubscribeQuotesRequiresSymbol(t *testing.T) {
	a := New(Config{}, zap.NewNop())
	defer a.Close()
	_, err := a.SubscribeQuotes("", func(quote.Quote) {})
	assert.Error(t, err)
}
