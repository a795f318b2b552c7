package iex

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/quote"
)

// iexQuote is the subset of /stock/{symbol}/quote the chart consumes.
type iexQuote struct {
	Symbol        string  `json:"symbol"`
	LatestPrice   float64 `json:"latestPrice"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	LatestVolume  float64 `json:"latestVolume"`
	LastTradeTime int64   `json:"lastTradeTime"`
}

func (q iexQuote) toQuote(requested string) quote.Quote {
	sym := q.Symbol
	if sym == "" {
		sym = requested
	}
	return quote.Quote{
		Symbol:        sym,
		LatestPrice:   q.LatestPrice,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Volume:        q.LatestVolume,
		LastTradeTime: q.LastTradeTime,
	}
}

type token struct {
	cancel context.CancelFunc
}

func (t *token) Unsubscribe() { t.cancel() }

// pollQuotes runs until ctx is cancelled. Failed polls back off (doubling,
// capped at 30s); a snapshot identical to the previous one is not
// re-published.
func (a *Adapter) pollQuotes(ctx context.Context, sym string, handler adapter.QuoteHandler) {
	var (
		last    quote.Quote
		have    bool
		backoff = a.quoteInterval
	)
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		next, err := a.Quote(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn("quote poll failed", zap.String("symbol", sym), zap.Duration("backoff", backoff), zap.Error(err))
			wait = backoff
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = a.quoteInterval
		wait = a.quoteInterval

		if have && next == last {
			continue
		}
		last, have = next, true
		handler(next)
	}
}
