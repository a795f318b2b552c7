package binance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
)

// windows maps chart resolutions to Binance kline intervals and the span of
// history fetched for the first chart window.
var windows = adapter.Windows{
	{Resolution: bar.Resolution5, Interval: "5m", Lookback: 5 * 24 * time.Hour},
	{Resolution: bar.Resolution30, Interval: "30m", Lookback: 30 * 24 * time.Hour},
	{Resolution: bar.ResolutionD, Interval: "1d", Lookback: 365 * 24 * time.Hour},
}

// quoteInterval is the kline stream used as the realtime quote feed.
const quoteInterval = "1m"

var timeNow = time.Now

// Adapter is the Binance spot market-data source.
type Adapter struct {
	BaseURL string
	WSURL   string

	httpClient *http.Client
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func New(log *zap.Logger) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		BaseURL:    baseURL,
		WSURL:      wsBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Named("binance"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *Adapter) Name() string { return "binance" }

func (a *Adapter) Resolutions() []bar.Resolution { return windows.Resolutions() }

// History fetches klines covering the resolution's lookback window ending now.
func (a *Adapter) History(ctx context.Context, symbol string, resolution bar.Resolution) ([]adapter.Record, error) {
	w, ok := windows.Lookup(resolution)
	if !ok {
		return nil, fmt.Errorf("binance: %w %q", adapter.ErrUnsupportedResolution, resolution)
	}
	end := timeNow()
	start := end.Add(-w.Lookback)
	return fetchKlines(ctx, a.httpClient, a.BaseURL, symbol, w.Interval, start.UnixMilli(), end.UnixMilli())
}

// SubscribeQuotes streams the 1m kline of symbol as quotes.
func (a *Adapter) SubscribeQuotes(symbol string, handler adapter.QuoteHandler) (adapter.Token, error) {
	return subscribeKline(a.ctx, a.log, a.WSURL, symbol, quoteInterval, handler)
}

// Close cancels all active subscriptions.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
