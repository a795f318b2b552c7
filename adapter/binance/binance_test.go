package binance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
)

func TestHistoryRequestsLookbackWindow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinePath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "30m", q.Get("interval"))
		assert.Equal(t, "1700000000000", q.Get("endTime"))
		assert.Equal(t, "1697408000000", q.Get("startTime"))
		io.WriteString(w, `[
			[1699999200000,"100.5","101","99.5","100.8","12.5",1699999259999,"0",1,"0","0","0"],
			[1699999260000,"100.8","102","100","101.2","3",1699999319999,"0",1,"0","0","0"]
		]`)
	}))
	defer ts.Close()

	a := New(zap.NewNop())
	defer a.Close()
	a.BaseURL = ts.URL

	recs, err := a.History(context.Background(), "BTCUSDT", bar.Resolution30)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, adapter.Record{
		Timestamp: 1699999200000, Open: 100.5, High: 101, Low: 99.5, Close: 100.8, Volume: 12.5,
	}, recs[0])
	assert.Equal(t, 101.2, recs[1].Close)
}

func TestHistoryUnsupportedResolution(t *testing.T) {
	a := New(zap.NewNop())
	defer a.Close()
	_, err := a.History(context.Background(), "BTCUSDT", bar.Resolution10)
	assert.True(t, errors.Is(err, adapter.ErrUnsupportedResolution))
}

func TestHistoryStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	a := New(zap.NewNop())
	defer a.Close()
	a.BaseURL = ts.URL
	_, err := a.History(context.Background(), "BTCUSDT", bar.ResolutionD)
	assert.ErrorContains(t, err, "unexpected status")
}

func TestParseKlinesRejectsShortRows(t *testing.T) {
	_, err := parseKlines([][]json.RawMessage{{json.RawMessage("1"), json.RawMessage(`"2"`)}})
	assert.Error(t, err)
}

func TestParseWsKline(t *testing.T) {
	q, err := parseWsKline([]byte(`{"e":"kline","E":1700000000123,"s":"BTCUSDT","k":{"t":1699999980000,"o":"1","h":"3","l":"0.5","c":"2.5","v":"10"}}`))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.Equal(t, 2.5, q.LatestPrice)
	assert.Equal(t, 1.0, q.Open)
	assert.Equal(t, 3.0, q.High)
	assert.Equal(t, 0.5, q.Low)
	assert.Equal(t, 10.0, q.Volume)
	assert.Equal(t, int64(1700000000123), q.LastTradeTime)

	_, err = parseWsKline([]byte(`{"e":"trade"}`))
	assert.Error(t, err)
}
