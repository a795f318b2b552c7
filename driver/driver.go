// Package driver binds one chart session to the host state: it owns the
// live DataFeed and widget for the selected symbol, serves history from an
// upstream source and turns quote snapshots into realtime bars.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/store"
)

// ErrStopped is returned by Select after Stop.
var ErrStopped = errors.New("driver: stopped")

type State int

const (
	Idle State = iota
	Initializing
	Loaded
	Streaming
	TornDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Loaded:
		return "loaded"
	case Streaming:
		return "streaming"
	case TornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Widget is a mounted chart bound to one DataFeed.
// Remove must not block on the widget's own goroutines.
type Widget interface {
	Remove()
}

// WidgetFactory mounts a chart for symbol on feed.
type WidgetFactory func(symbol string, resolution bar.Resolution, feed *datafeed.DataFeed) (Widget, error)

type Config struct {
	Source    adapter.Source
	Store     *store.Store
	NewWidget WidgetFactory

	Location   *time.Location // chart timezone; UTC when nil
	Exchange   string
	Resolution bar.Resolution // resolution new widgets open with
	Timeout    time.Duration  // per history fetch; none when zero
	Log        *zap.Logger
}

// Snapshot is a point-in-time copy of the driver's session state.
type Snapshot struct {
	State      State
	Symbol     string
	Resolution bar.Resolution
	LoadEnd    bool
	LastBar    *bar.Bar
	Generation uint64
}

type Driver struct {
	cfg Config
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes Select and Stop.
	opMu sync.Mutex

	mu         sync.Mutex
	state      State
	symbol     string
	resolution bar.Resolution
	gen        uint64
	feed       *datafeed.DataFeed
	widget     Widget
	loadEnd    bool
	lastBar    *bar.Bar
	tokens     []store.Token
	stopped    bool
}

func New(cfg Config) *Driver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Resolution == "" {
		cfg.Resolution = bar.ResolutionD
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		cfg:        cfg,
		log:        cfg.Log.Named("driver"),
		ctx:        ctx,
		cancel:     cancel,
		resolution: cfg.Resolution,
	}
}

// Start observes the store and mounts a chart for the symbol already
// selected there, if any.
func (d *Driver) Start() error {
	d.mu.Lock()
	d.tokens = append(d.tokens,
		d.cfg.Store.Subscribe(store.SymbolSelected, d.onSymbolSelected),
		d.cfg.Store.Subscribe(store.QuoteUpdated, func(ev store.Event) { d.OnQuote(ev.Quote) }),
	)
	d.mu.Unlock()

	if sym := d.cfg.Store.Primary(); sym != "" {
		return d.Select(sym)
	}
	return nil
}

// Stop removes the live chart and releases the store observers. The driver
// cannot be restarted.
func (d *Driver) Stop() {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	tokens := d.tokens
	d.tokens = nil
	w, feed := d.teardownLocked()
	d.state = TornDown
	d.mu.Unlock()

	for _, t := range tokens {
		t.Unsubscribe()
	}
	release(w, feed)
	d.cancel()
}

// Select makes sym the chart's symbol. Selecting the live symbol again is
// a no-op; any other symbol tears the current chart down first. An empty
// symbol returns the driver to Idle.
func (d *Driver) Select(sym string) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	if sym == d.symbol && (d.state == Initializing || d.state == Loaded || d.state == Streaming) {
		d.mu.Unlock()
		return nil
	}
	oldWidget, oldFeed := d.teardownLocked()
	d.gen++
	gen := d.gen

	if sym == "" {
		d.symbol = ""
		d.state = Idle
		d.mu.Unlock()
		release(oldWidget, oldFeed)
		return nil
	}

	d.symbol = sym
	d.state = Initializing
	resolution := d.resolution
	info := d.symbolInfo(sym)
	conf := d.configuration()
	feed := datafeed.New(datafeed.Options{
		Configuration: &conf,
		SearchSymbols: d.searchSymbols,
		ResolveSymbol: d.resolveSymbol,
		GetBars:       d.historyProvider(gen),
		GetServerTime: func(onTime datafeed.ServerTimeCallback) { onTime(time.Now().Unix()) },
	})
	d.feed = feed
	d.mu.Unlock()

	release(oldWidget, oldFeed)
	d.log.Info("chart session started",
		zap.String("symbol", info.Name), zap.String("resolution", string(resolution)), zap.Uint64("gen", gen))

	w, err := d.cfg.NewWidget(sym, resolution, feed)

	d.mu.Lock()
	if err != nil {
		if d.gen == gen {
			d.feed = nil
			d.state = TornDown
		}
		d.mu.Unlock()
		feed.Close()
		return fmt.Errorf("driver: mount widget %s: %w", sym, err)
	}
	d.widget = w
	d.mu.Unlock()
	return nil
}

// SetResolution sets the resolution later widgets open with. The live
// widget changes its own resolution.
func (d *Driver) SetResolution(r bar.Resolution) {
	d.mu.Lock()
	d.resolution = r
	d.mu.Unlock()
}

// ChartSymbolChanged publishes a symbol change made inside the chart so
// the other panels follow it.
func (d *Driver) ChartSymbolChanged(sym string) {
	if sym == "" {
		return
	}
	d.cfg.Store.SelectSymbol(sym)
}

// OnQuote republishes the cached last bar with the quote's price as close.
// Quotes are dropped until history has loaded, and when they belong to
// another symbol. The bar keeps the cached bar's time, so every quote
// updates the same bar in place.
func (d *Driver) OnQuote(q quote.Quote) {
	d.mu.Lock()
	if !d.loadEnd || d.lastBar == nil || d.feed == nil {
		d.mu.Unlock()
		metrics.DropQuote("not_loaded")
		return
	}
	if !strings.EqualFold(q.Symbol, d.symbol) {
		d.mu.Unlock()
		metrics.DropQuote("symbol_mismatch")
		return
	}
	b := *d.lastBar
	b.Close = q.LatestPrice
	feed := d.feed
	d.state = Streaming
	d.mu.Unlock()

	feed.UpdateBar(b)
	metrics.RealtimeBars.Inc()
}

func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		State:      d.state,
		Symbol:     d.symbol,
		Resolution: d.resolution,
		LoadEnd:    d.loadEnd,
		Generation: d.gen,
	}
	if d.lastBar != nil {
		b := *d.lastBar
		s.LastBar = &b
	}
	return s
}

// Feed returns the live DataFeed, or nil when no chart is mounted.
func (d *Driver) Feed() *datafeed.DataFeed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feed
}

// ── internal ─────────────────────────────────────────────────────────────────

func (d *Driver) onSymbolSelected(ev store.Event) {
	var sym string
	if len(ev.Symbols) > 0 {
		sym = ev.Symbols[0]
	}
	if err := d.Select(sym); err != nil && !errors.Is(err, ErrStopped) {
		d.log.Error("select symbol", zap.String("symbol", sym), zap.Error(err))
	}
}

// teardownLocked clears the session and returns what the caller must
// release once the lock is dropped.
func (d *Driver) teardownLocked() (Widget, *datafeed.DataFeed) {
	w, feed := d.widget, d.feed
	if w != nil || feed != nil {
		d.state = TornDown
	}
	d.widget = nil
	d.feed = nil
	d.loadEnd = false
	d.lastBar = nil
	return w, feed
}

func release(w Widget, feed *datafeed.DataFeed) {
	if w != nil {
		w.Remove()
	}
	if feed != nil {
		feed.Close()
	}
}

func (d *Driver) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen && !d.stopped
}
