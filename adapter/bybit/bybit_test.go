package bybit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/model/bar"
)

func TestHistoryReversesToChronologicalOrder(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "spot", q.Get("category"))
		assert.Equal(t, "D", q.Get("interval"))
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1699920000000","2","3","1","2.5","7","0"],
			["1699833600000","1","2","0.5","2","5","0"]
		]}}`)
	}))
	defer ts.Close()

	a := New(zap.NewNop(), "spot")
	defer a.Close()
	a.BaseURL = ts.URL

	recs, err := a.History(context.Background(), "BTCUSDT", bar.ResolutionD)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1699833600000), recs[0].Timestamp)
	assert.Equal(t, 2.5, recs[1].Close)
	assert.Equal(t, 7.0, recs[1].Volume)
}

func TestHistoryAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":10001,"retMsg":"params error"}`)
	}))
	defer ts.Close()

	a := New(zap.NewNop(), "")
	defer a.Close()
	a.BaseURL = ts.URL

	_, err := a.History(context.Background(), "BTCUSDT", bar.Resolution5)
	assert.ErrorContains(t, err, "params error")
}

func TestParseWsMessage(t *testing.T) {
	quotes, err := parseWsMessage("BTCUSDT", []byte(`{"topic":"kline.1.BTCUSDT","type":"snapshot","ts":1700000000500,
		"data":[{"start":1699999980000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"9","timestamp":1700000000400}]}`))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 1.5, quotes[0].LatestPrice)
	assert.Equal(t, int64(1700000000400), quotes[0].LastTradeTime)

	quotes, err = parseWsMessage("BTCUSDT", []byte(`{"op":"pong","success":true}`))
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
