package bybit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
)

var windows = adapter.Windows{
	{Resolution: bar.Resolution5, Interval: "5", Lookback: 5 * 24 * time.Hour},
	{Resolution: bar.Resolution30, Interval: "30", Lookback: 30 * 24 * time.Hour},
	{Resolution: bar.ResolutionD, Interval: "D", Lookback: 365 * 24 * time.Hour},
}

const quoteInterval = "1"

var timeNow = time.Now

// Adapter is the Bybit market-data source.
type Adapter struct {
	BaseURL string
	WSURL   string

	httpClient *http.Client
	category   string // "linear" | "spot" | "inverse"
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a Bybit source for category ("linear" when empty).
func New(log *zap.Logger, category string) *Adapter {
	if category == "" {
		category = "linear"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		BaseURL:    baseURL,
		WSURL:      wsBaseURL + category,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		category:   category,
		log:        log.Named("bybit"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *Adapter) Name() string { return "bybit" }

func (a *Adapter) Resolutions() []bar.Resolution { return windows.Resolutions() }

// History fetches klines via the Bybit REST API over the resolution's
// lookback window.
func (a *Adapter) History(ctx context.Context, symbol string, resolution bar.Resolution) ([]adapter.Record, error) {
	w, ok := windows.Lookup(resolution)
	if !ok {
		return nil, fmt.Errorf("bybit: %w %q", adapter.ErrUnsupportedResolution, resolution)
	}
	end := timeNow()
	start := end.Add(-w.Lookback)
	return fetchKlines(ctx, a.httpClient, a.BaseURL, a.category, symbol, w.Interval, start.UnixMilli(), end.UnixMilli())
}

// SubscribeQuotes opens a WebSocket kline stream for symbol and publishes
// each update as a quote. The returned Token cancels this subscription.
func (a *Adapter) SubscribeQuotes(symbol string, handler adapter.QuoteHandler) (adapter.Token, error) {
	return subscribeKline(a.ctx, a.log, a.WSURL, symbol, quoteInterval, handler)
}

// Close cancels all active subscriptions and releases resources.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
