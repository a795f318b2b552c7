package okx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
)

// OKX bar strings are case-sensitive: lowercase m for minutes, uppercase
// for hours and above. Daily candles are requested aligned to UTC.
var windows = adapter.Windows{
	{Resolution: bar.Resolution5, Interval: "5m", Lookback: 5 * 24 * time.Hour},
	{Resolution: bar.Resolution30, Interval: "30m", Lookback: 30 * 24 * time.Hour},
	{Resolution: bar.ResolutionD, Interval: "1Dutc", Lookback: 365 * 24 * time.Hour},
}

const quoteInterval = "1m"

var timeNow = time.Now

// Adapter is the OKX exchange adapter.
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
		WSURL:      wsEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Named("okx"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *Adapter) Name() string { return "okx" }

func (a *Adapter) Resolutions() []bar.Resolution { return windows.Resolutions() }

// History fetches candles for an OKX instrument id (e.g. "BTC-USDT").
func (a *Adapter) History(ctx context.Context, instID string, resolution bar.Resolution) ([]adapter.Record, error) {
	w, ok := windows.Lookup(resolution)
	if !ok {
		return nil, fmt.Errorf("okx: %w %q", adapter.ErrUnsupportedResolution, resolution)
	}
	end := timeNow()
	start := end.Add(-w.Lookback)
	return fetchKlines(ctx, a.httpClient, a.BaseURL, instID, w.Interval, start.UnixMilli(), end.UnixMilli())
}

func (a *Adapter) SubscribeQuotes(instID string, handler adapter.QuoteHandler) (adapter.Token, error) {
	return subscribeKline(a.ctx, a.log, a.WSURL, instID, quoteInterval, handler)
}

func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
