// Package widget is the server-side chart: it drives a DataFeed in the
// order a charting library does and forwards everything it receives to a
// Sink.
package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

// Event types.
const (
	EventConfig  = "config"
	EventSymbol  = "symbol"
	EventHistory = "history"
	EventNoData  = "nodata"
	EventBar     = "bar"
	EventSearch  = "search"
	EventError   = "error"
)

// defaultCountBack is how many bars the first window asks for.
const defaultCountBack = 300

// Event is one message from the chart to its client.
type Event struct {
	Type       string                `json:"type"`
	Widget     string                `json:"widget,omitempty"`
	Symbol     string                `json:"symbol,omitempty"`
	Resolution bar.Resolution        `json:"resolution,omitempty"`
	Config     *symbol.Configuration `json:"config,omitempty"`
	Info       *symbol.Info          `json:"info,omitempty"`
	Bars       []bar.Bar             `json:"bars,omitempty"`
	Bar        *bar.Bar              `json:"bar,omitempty"`
	Results    []symbol.SearchResult `json:"results,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Sink receives chart events. Send may be called from several goroutines.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

// Widget is one mounted chart.
type Widget struct {
	id   string
	feed *datafeed.DataFeed
	sink Sink
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes loads so a resolution change never interleaves with
	// the initial load.
	opMu sync.Mutex

	mu         sync.Mutex
	symbol     string
	resolution bar.Resolution
	info       symbol.Info
	resolved   bool
	subID      string
	oldest     int64 // ms; time of the first bar shown
}

// Mount creates a widget for sym and starts loading it in the background:
// configuration, symbol resolution, the first history window, then the
// realtime subscription.
func Mount(feed *datafeed.DataFeed, sym string, resolution bar.Resolution, sink Sink, log *zap.Logger) *Widget {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		id:         uuid.NewString(),
		feed:       feed,
		sink:       sink,
		ctx:        ctx,
		cancel:     cancel,
		symbol:     sym,
		resolution: resolution,
	}
	w.log = log.Named("widget").With(zap.String("widget", w.id), zap.String("symbol", sym))
	go w.load()
	return w
}

func (w *Widget) ID() string { return w.id }

func (w *Widget) Symbol() string { return w.symbol }

func (w *Widget) Resolution() bar.Resolution {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resolution
}

// Done is closed once the widget is removed.
func (w *Widget) Done() <-chan struct{} { return w.ctx.Done() }

// SetResolution reloads the chart at r in the background.
func (w *Widget) SetResolution(r bar.Resolution) {
	go func() {
		w.opMu.Lock()
		defer w.opMu.Unlock()
		if w.ctx.Err() != nil {
			return
		}
		w.unsubscribe()
		w.mu.Lock()
		w.resolution = r
		w.mu.Unlock()
		w.loadHistory()
	}()
}

// LoadMore asks for the window before the oldest bar shown. The feed does
// not page, so this ends in a nodata event.
func (w *Widget) LoadMore() {
	w.mu.Lock()
	info, r, oldest := w.info, w.resolution, w.oldest
	resolved := w.resolved
	w.mu.Unlock()
	if !resolved {
		return
	}
	to := oldest / 1000
	if to == 0 {
		to = time.Now().Unix()
	}
	params := bar.PeriodParams{From: to - 86400*30, To: to, CountBack: defaultCountBack}
	w.feed.GetBars(info, r, params, w.onHistory(r), w.onError)
}

// Search forwards a symbol search to the feed.
func (w *Widget) Search(query, exchange, symbolType string) {
	w.feed.SearchSymbols(query, exchange, symbolType, func(results []symbol.SearchResult) {
		w.send(Event{Type: EventSearch, Results: results})
	})
}

// Remove unsubscribes the widget and stops all further events. It does not
// wait for an in-flight load.
func (w *Widget) Remove() {
	w.cancel()
	w.unsubscribe()
}

// ── internal ─────────────────────────────────────────────────────────────────

func (w *Widget) load() {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	w.feed.OnReady(func(c symbol.Configuration) {
		w.send(Event{Type: EventConfig, Config: &c})
	})

	ok := false
	w.feed.ResolveSymbol(w.symbol,
		func(info symbol.Info) {
			w.mu.Lock()
			w.info, w.resolved = info, true
			w.mu.Unlock()
			ok = true
			w.send(Event{Type: EventSymbol, Symbol: w.symbol, Info: &info})
		},
		w.onError)
	if !ok {
		return
	}
	w.loadHistory()
}

// loadHistory requests the first window at the current resolution and then
// subscribes to realtime bars. Called with opMu held.
func (w *Widget) loadHistory() {
	if w.ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	info, r := w.info, w.resolution
	w.mu.Unlock()

	now := time.Now().Unix()
	params := bar.PeriodParams{From: now - 86400*365, To: now, CountBack: defaultCountBack, FirstDataRequest: true}
	w.feed.GetBars(info, r, params, w.onHistory(r), w.onError)

	if w.ctx.Err() != nil {
		return
	}
	subID := fmt.Sprintf("%s_#_%s_#_%s", w.id, info.Name, r)
	w.mu.Lock()
	w.subID = subID
	w.mu.Unlock()
	w.feed.SubscribeBars(info, r, w.onRealtime(r), subID, w.onResetCache)
	metrics.ActiveSubscriptions.Inc()
	if w.ctx.Err() != nil {
		// Removed while subscribing.
		w.unsubscribe()
	}
}

func (w *Widget) onHistory(r bar.Resolution) datafeed.HistoryCallback {
	return func(bars []bar.Bar, meta bar.HistoryMeta) {
		if meta.NoData || len(bars) == 0 {
			w.send(Event{Type: EventNoData, Symbol: w.symbol, Resolution: r})
			return
		}
		w.mu.Lock()
		w.oldest = bars[0].Time
		w.mu.Unlock()
		w.send(Event{Type: EventHistory, Symbol: w.symbol, Resolution: r, Bars: bars})
	}
}

func (w *Widget) onRealtime(r bar.Resolution) datafeed.BarCallback {
	return func(b bar.Bar) {
		w.send(Event{Type: EventBar, Symbol: w.symbol, Resolution: r, Bar: &b})
	}
}

func (w *Widget) onError(reason string) {
	w.send(Event{Type: EventError, Symbol: w.symbol, Error: reason})
}

// onResetCache reloads the current window from scratch.
func (w *Widget) onResetCache() {
	go func() {
		w.opMu.Lock()
		defer w.opMu.Unlock()
		w.unsubscribe()
		w.loadHistory()
	}()
}

func (w *Widget) unsubscribe() {
	w.mu.Lock()
	subID := w.subID
	w.subID = ""
	w.mu.Unlock()
	if subID == "" {
		return
	}
	w.feed.UnsubscribeBars(subID)
	metrics.ActiveSubscriptions.Dec()
}

func (w *Widget) send(ev Event) {
	if w.ctx.Err() != nil {
		return
	}
	ev.Widget = w.id
	if err := w.sink.Send(ev); err != nil {
		w.log.Debug("send event", zap.String("type", ev.Type), zap.Error(err))
	}
}
