// Package sources builds the configured upstream Source.
package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/adapter/binance"
	"github.com/yitech/chartfeed/adapter/bybit"
	"github.com/yitech/chartfeed/adapter/iex"
	"github.com/yitech/chartfeed/adapter/okx"
	"github.com/yitech/chartfeed/config"
	"github.com/yitech/chartfeed/model/symbol"
)

// New returns the source named by cfg.Kind.
func New(cfg config.SourceConfig, log *zap.Logger) (adapter.Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Kind {
	case config.SourceIEX:
		return iex.New(iex.Config{
			BaseURL:       cfg.BaseURL,
			Token:         cfg.Token,
			Timeout:       cfg.Timeout,
			Retries:       cfg.Retries,
			QuoteInterval: cfg.QuoteInterval,
		}, log), nil
	case config.SourceBinance:
		a := binance.New(log)
		override(&a.BaseURL, &a.WSURL, cfg)
		return a, nil
	case config.SourceBybit:
		a := bybit.New(log, cfg.Category)
		override(&a.BaseURL, &a.WSURL, cfg)
		return a, nil
	case config.SourceOKX:
		a := okx.New(log)
		override(&a.BaseURL, &a.WSURL, cfg)
		return a, nil
	default:
		return nil, fmt.Errorf("sources: unknown kind %q", cfg.Kind)
	}
}

func override(base, ws *string, cfg config.SourceConfig) {
	if cfg.BaseURL != "" {
		*base = cfg.BaseURL
	}
	if cfg.WSURL != "" {
		*ws = cfg.WSURL
	}
}

// Directory returns src's own symbol directory when it publishes one,
// falling back to fallback when it does not or the fetch fails.
func Directory(ctx context.Context, src adapter.Source, fallback []symbol.Entry, log *zap.Logger) []symbol.Entry {
	dir, ok := src.(adapter.Directory)
	if !ok {
		return fallback
	}
	entries, err := dir.Symbols(ctx)
	if err != nil {
		if log != nil {
			log.Warn("load symbol directory", zap.String("source", src.Name()), zap.Error(err))
		}
		return fallback
	}
	if len(entries) == 0 {
		return fallback
	}
	return entries
}
