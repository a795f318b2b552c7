// Package datafeed implements the data-feed contract of the charting widget.
//
// A DataFeed answers the widget's fixed capability set (configuration,
// symbol search and resolution, history, realtime subscriptions, marks and
// server time). Every capability is an optional slot in Options; when a slot
// is empty the DataFeed falls back to a fixed default. All results and
// failures are reported through the callbacks supplied by the caller, and
// callbacks fire on the calling goroutine before the method returns.
package datafeed

import (
	"sync"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

// ResolveErrorMessage is reported to onError when no resolver is configured.
const ResolveErrorMessage = "cannot resolve symbol"

type (
	ReadyCallback          func(symbol.Configuration)
	SearchCallback         func([]symbol.SearchResult)
	ResolveCallback        func(symbol.Info)
	ErrorCallback          func(reason string)
	HistoryCallback        func(bars []bar.Bar, meta bar.HistoryMeta)
	BarCallback            func(bar.Bar)
	ResetCacheCallback     func()
	MarksCallback          func([]bar.Mark)
	TimescaleMarksCallback func([]bar.TimescaleMark)
	ServerTimeCallback     func(unixSeconds int64)
)

// Options configures a DataFeed. Every field is optional.
type Options struct {
	Configuration *symbol.Configuration

	SearchSymbols     func(query, exchange, symbolType string, onResult SearchCallback)
	ResolveSymbol     func(name string, onResolved ResolveCallback, onError ErrorCallback)
	GetBars           func(info symbol.Info, resolution bar.Resolution, params bar.PeriodParams, onResult HistoryCallback, onError ErrorCallback)
	GetMarks          func(info symbol.Info, from, to int64, onData MarksCallback, resolution bar.Resolution)
	GetTimescaleMarks func(info symbol.Info, from, to int64, onData TimescaleMarksCallback, resolution bar.Resolution)
	GetServerTime     func(onTime ServerTimeCallback)
}

// DataFeed bridges the widget's pull/push protocol to the configured
// providers and fans realtime bars out to subscribers.
type DataFeed struct {
	opts Options

	mu   sync.Mutex
	subs map[string]*subscription
}

// New creates a DataFeed backed by opts.
func New(opts Options) *DataFeed {
	return &DataFeed{
		opts: opts,
		subs: make(map[string]*subscription),
	}
}

// OnReady hands the capability descriptor to the widget. An empty
// descriptor is supplied when none was configured.
func (f *DataFeed) OnReady(cb ReadyCallback) {
	if cb == nil {
		return
	}
	var cfg symbol.Configuration
	if f.opts.Configuration != nil {
		cfg = *f.opts.Configuration
	}
	cb(cfg)
}

// SearchSymbols delegates to the configured search provider, or resolves
// with an empty result set. It never reports an error.
func (f *DataFeed) SearchSymbols(query, exchange, symbolType string, onResult SearchCallback) {
	if f.opts.SearchSymbols != nil {
		f.opts.SearchSymbols(query, exchange, symbolType, onResult)
		return
	}
	if onResult != nil {
		onResult([]symbol.SearchResult{})
	}
}

// ResolveSymbol delegates to the configured resolver. Without one,
// onError receives ResolveErrorMessage.
func (f *DataFeed) ResolveSymbol(name string, onResolved ResolveCallback, onError ErrorCallback) {
	if f.opts.ResolveSymbol != nil {
		f.opts.ResolveSymbol(name, onResolved, onError)
		return
	}
	if onError != nil {
		onError(ResolveErrorMessage)
	}
}

// GetBars returns history for the first window the widget asks for.
// Follow-up (paginated) requests are answered with NoData and never reach
// the provider.
func (f *DataFeed) GetBars(info symbol.Info, resolution bar.Resolution, params bar.PeriodParams, onResult HistoryCallback, onError ErrorCallback) {
	if f.opts.GetBars == nil || !params.FirstDataRequest {
		if onResult != nil {
			onResult([]bar.Bar{}, bar.HistoryMeta{NoData: true})
		}
		return
	}
	f.opts.GetBars(info, resolution, params, onResult, onError)
}

// GetMarks delegates to the configured provider, if any.
func (f *DataFeed) GetMarks(info symbol.Info, from, to int64, onData MarksCallback, resolution bar.Resolution) {
	if f.opts.GetMarks != nil {
		f.opts.GetMarks(info, from, to, onData, resolution)
	}
}

// GetTimescaleMarks delegates to the configured provider, if any.
func (f *DataFeed) GetTimescaleMarks(info symbol.Info, from, to int64, onData TimescaleMarksCallback, resolution bar.Resolution) {
	if f.opts.GetTimescaleMarks != nil {
		f.opts.GetTimescaleMarks(info, from, to, onData, resolution)
	}
}

// GetServerTime delegates to the configured provider, if any.
func (f *DataFeed) GetServerTime(onTime ServerTimeCallback) {
	if f.opts.GetServerTime != nil {
		f.opts.GetServerTime(onTime)
	}
}
