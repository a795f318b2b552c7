package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/symbol"
)

// ErrUnsupportedResolution is returned by History when a source has no
// upstream range for the requested resolution.
var ErrUnsupportedResolution = errors.New("unsupported resolution")

// Record is one upstream history row.
//
// When Timestamp is non-zero it is the row's open instant in Unix
// milliseconds. Otherwise Date ("2006-01-02") and, for intraday rows,
// Minute ("15:04") give a wall-clock instant that the caller localizes to
// the chart's timezone.
type Record struct {
	Date      string  `json:"date"`
	Minute    string  `json:"minute,omitempty"`
	Timestamp int64   `json:"-"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// QuoteHandler receives every quote published by a source.
type QuoteHandler func(quote.Quote)

// Token cancels one quote subscription.
type Token interface {
	Unsubscribe()
}

// Source is an upstream market-data service: history over HTTP plus a
// realtime quote stream.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Resolutions lists the resolutions History can serve, in display order.
	Resolutions() []bar.Resolution

	// History fetches the fixed upstream range mapped to resolution.
	// Records are returned in upstream order.
	History(ctx context.Context, symbol string, resolution bar.Resolution) ([]Record, error)

	// SubscribeQuotes starts streaming quotes for symbol until the returned
	// Token is cancelled or the source is closed.
	SubscribeQuotes(symbol string, handler QuoteHandler) (Token, error)

	// Close shuts down the source and all of its subscriptions.
	Close() error
}

// Directory is implemented by sources that publish a symbol directory.
type Directory interface {
	Symbols(ctx context.Context) ([]symbol.Entry, error)
}

// Window maps one chart resolution to an upstream interval or range.
// Lookback is the history span requested for interval-based sources and is
// zero for range-based ones.
type Window struct {
	Resolution bar.Resolution
	Interval   string
	Lookback   time.Duration
}

// Windows is a fixed resolution lookup table, kept in display order.
type Windows []Window

// Lookup returns the window for r.
func (ws Windows) Lookup(r bar.Resolution) (Window, bool) {
	for _, w := range ws {
		if w.Resolution == r {
			return w, true
		}
	}
	return Window{}, false
}

// Resolutions returns the table's resolutions in order.
func (ws Windows) Resolutions() []bar.Resolution {
	out := make([]bar.Resolution, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Resolution)
	}
	return out
}
