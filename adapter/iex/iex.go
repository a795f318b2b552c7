// Package iex is the IEX Cloud source: fixed-range chart history, a polled
// quote stream and the reference symbol directory.
package iex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/symbol"
)

const DefaultBaseURL = "https://cloud.iexapis.com/stable"

// windows maps chart resolutions to IEX chart ranges: five days of minute
// bars, one month of minute bars, one year of daily bars.
var windows = adapter.Windows{
	{Resolution: bar.Resolution10, Interval: "5dm"},
	{Resolution: bar.Resolution30, Interval: "1mm"},
	{Resolution: bar.ResolutionD, Interval: "1y"},
}

type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	Retries       int
	QuoteInterval time.Duration
}

// Adapter talks to the IEX Cloud REST API.
type Adapter struct {
	client        *resty.Client
	quoteInterval time.Duration
	log           *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
}

func New(cfg Config, log *zap.Logger) *Adapter {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetQueryParam("token", cfg.Token)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		client:        client,
		quoteInterval: cfg.QuoteInterval,
		log:           log.Named("iex"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (a *Adapter) Name() string { return "iex" }

func (a *Adapter) Resolutions() []bar.Resolution { return windows.Resolutions() }

// History fetches the chart range mapped to resolution. A missing or null
// payload yields an empty slice.
func (a *Adapter) History(ctx context.Context, sym string, resolution bar.Resolution) ([]adapter.Record, error) {
	w, ok := windows.Lookup(resolution)
	if !ok {
		return nil, fmt.Errorf("iex: %w %q", adapter.ErrUnsupportedResolution, resolution)
	}

	var out []adapter.Record
	err := a.get(ctx, "/stock/{symbol}/chart/{range}", map[string]string{
		"symbol": sym,
		"range":  w.Interval,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("iex: chart %s/%s: %w", sym, w.Interval, err)
	}
	return out, nil
}

// Quote fetches the current quote snapshot for sym.
func (a *Adapter) Quote(ctx context.Context, sym string) (quote.Quote, error) {
	var q iexQuote
	if err := a.get(ctx, "/stock/{symbol}/quote", map[string]string{"symbol": sym}, &q); err != nil {
		return quote.Quote{}, fmt.Errorf("iex: quote %s: %w", sym, err)
	}
	return q.toQuote(sym), nil
}

// Symbols returns the reference symbol directory.
func (a *Adapter) Symbols(ctx context.Context) ([]symbol.Entry, error) {
	var out []symbol.Entry
	if err := a.get(ctx, "/ref-data/symbols", nil, &out); err != nil {
		return nil, fmt.Errorf("iex: ref-data symbols: %w", err)
	}
	return out, nil
}

// SubscribeQuotes polls the quote endpoint every QuoteInterval and hands
// changed snapshots to handler.
func (a *Adapter) SubscribeQuotes(sym string, handler adapter.QuoteHandler) (adapter.Token, error) {
	if sym == "" {
		return nil, fmt.Errorf("iex: symbol required")
	}
	ctx, cancel := context.WithCancel(a.ctx)
	go a.pollQuotes(ctx, sym, handler)
	return &token{cancel: cancel}, nil
}

func (a *Adapter) Close() error {
	a.cancel()
	return nil
}

func (a *Adapter) get(ctx context.Context, path string, params map[string]string, out any) error {
	// IEX does not always label its payloads as JSON.
	req := a.client.R().
		SetContext(ctx).
		SetResult(out).
		ForceContentType("application/json")
	if len(params) > 0 {
		req.SetPathParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %s", resp.Status())
	}
	return nil
}

var _ adapter.Source = (*Adapter)(nil)
var _ adapter.Directory = (*Adapter)(nil)
