package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/adapter/binance"
	"github.com/yitech/chartfeed/adapter/bybit"
	"github.com/yitech/chartfeed/config"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

func TestNewByKind(t *testing.T) {
	for _, kind := range []string{config.SourceIEX, config.SourceBinance, config.SourceBybit, config.SourceOKX} {
		src, err := New(config.SourceConfig{Kind: kind}, nil)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, src.Name())
		assert.NotEmpty(t, src.Resolutions())
		require.NoError(t, src.Close())
	}

	_, err := New(config.SourceConfig{Kind: "nasdaq"}, nil)
	assert.Error(t, err)
}

func TestNewAppliesURLOverrides(t *testing.T) {
	src, err := New(config.SourceConfig{Kind: config.SourceBinance, BaseURL: "http://localhost:1", WSURL: "ws://localhost:2"}, nil)
	require.NoError(t, err)
	a := src.(*binance.Adapter)
	assert.Equal(t, "http://localhost:1", a.BaseURL)
	assert.Equal(t, "ws://localhost:2", a.WSURL)

	src, err = New(config.SourceConfig{Kind: config.SourceBybit, Category: "spot"}, nil)
	require.NoError(t, err)
	assert.Contains(t, src.(*bybit.Adapter).WSURL, "spot")
}

type dirSource struct {
	entries []symbol.Entry
	err     error
}

func (dirSource) Name() string                  { return "dir" }
func (dirSource) Resolutions() []bar.Resolution { return nil }
func (dirSource) History(context.Context, string, bar.Resolution) ([]adapter.Record, error) {
	return nil, nil
}
func (dirSource) SubscribeQuotes(string, adapter.QuoteHandler) (adapter.Token, error) {
	return nil, nil
}
func (dirSource) Close() error { return nil }

func (d dirSource) Symbols(context.Context) ([]symbol.Entry, error) { return d.entries, d.err }

func TestDirectory(t *testing.T) {
	fallback := []symbol.Entry{{Symbol: "AAPL"}}
	ctx := context.Background()

	got := Directory(ctx, dirSource{entries: []symbol.Entry{{Symbol: "MSFT"}}}, fallback, nil)
	assert.Equal(t, "MSFT", got[0].Symbol)

	assert.Equal(t, fallback, Directory(ctx, dirSource{err: errors.New("down")}, fallback, nil))
	assert.Equal(t, fallback, Directory(ctx, dirSource{}, fallback, nil))
}
