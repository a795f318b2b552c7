// Package session wires one connected client to its own chart: a store,
// a driver, the mounted widget and the upstream quote stream for the
// selected symbol.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/driver"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/symbol"
	"github.com/yitech/chartfeed/store"
	"github.com/yitech/chartfeed/widget"
)

// Client command types.
const (
	CmdSelect      = "select"
	CmdChartSymbol = "chart_symbol"
	CmdResolution  = "resolution"
	CmdSearch      = "search"
	CmdMore        = "more"
)

// Command is one request from the client.
type Command struct {
	Type       string         `json:"type"`
	Symbol     string         `json:"symbol,omitempty"`
	Symbols    []string       `json:"symbols,omitempty"`
	Resolution bar.Resolution `json:"resolution,omitempty"`
	Query      string         `json:"query,omitempty"`
	Exchange   string         `json:"exchange,omitempty"`
	SymbolType string         `json:"symbolType,omitempty"`
}

// Deps are shared by every session.
type Deps struct {
	Source     adapter.Source
	Location   *time.Location
	Exchange   string
	Resolution bar.Resolution
	Timeout    time.Duration
	Log        *zap.Logger
}

type Session struct {
	id     string
	deps   Deps
	sink   widget.Sink
	log    *zap.Logger
	store  *store.Store
	driver *driver.Driver

	mu       sync.Mutex
	widget   *widget.Widget
	quoteTok adapter.Token
	quoteSym string
	storeTok store.Token
	closed   bool
}

func newSession(deps Deps, sink widget.Sink, directory []symbol.Entry) *Session {
	id := uuid.NewString()
	s := &Session{
		id:    id,
		deps:  deps,
		sink:  sink,
		log:   deps.Log.Named("session").With(zap.String("session", id)),
		store: store.New(),
	}
	s.store.SetDirectory(directory)
	s.driver = driver.New(driver.Config{
		Source:     deps.Source,
		Store:      s.store,
		NewWidget:  s.mountWidget,
		Location:   deps.Location,
		Exchange:   deps.Exchange,
		Resolution: deps.Resolution,
		Timeout:    deps.Timeout,
		Log:        s.log,
	})
	return s
}

func (s *Session) ID() string { return s.id }

// Store exposes the session's host state.
func (s *Session) Store() *store.Store { return s.store }

// Driver exposes the session's feed driver.
func (s *Session) Driver() *driver.Driver { return s.driver }

// Start begins following the store and selects symbols, if any.
func (s *Session) Start(symbols []string) error {
	tok := s.store.Subscribe(store.SymbolSelected, func(ev store.Event) {
		var sym string
		if len(ev.Symbols) > 0 {
			sym = ev.Symbols[0]
		}
		s.followQuotes(sym)
	})
	s.mu.Lock()
	s.storeTok = tok
	s.mu.Unlock()

	if err := s.driver.Start(); err != nil {
		return fmt.Errorf("session: start driver: %w", err)
	}
	if len(symbols) > 0 {
		s.store.SelectSymbols(symbols)
	}
	return nil
}

// Handle applies one client command.
func (s *Session) Handle(cmd Command) error {
	switch cmd.Type {
	case CmdSelect:
		symbols := cmd.Symbols
		if len(symbols) == 0 && cmd.Symbol != "" {
			symbols = []string{cmd.Symbol}
		}
		s.store.SelectSymbols(symbols)
	case CmdChartSymbol:
		s.driver.ChartSymbolChanged(cmd.Symbol)
	case CmdResolution:
		if cmd.Resolution == "" {
			return fmt.Errorf("session: resolution required")
		}
		s.driver.SetResolution(cmd.Resolution)
		if w := s.currentWidget(); w != nil {
			w.SetResolution(cmd.Resolution)
		}
	case CmdSearch:
		if w := s.currentWidget(); w != nil {
			w.Search(cmd.Query, cmd.Exchange, cmd.SymbolType)
			return nil
		}
		results := driver.Search(s.store.Directory(), cmd.Query, cmd.Exchange, cmd.SymbolType, s.deps.Exchange)
		return s.sink.Send(widget.Event{Type: widget.EventSearch, Results: results})
	case CmdMore:
		if w := s.currentWidget(); w != nil {
			w.LoadMore()
		}
	default:
		return fmt.Errorf("session: unknown command %q", cmd.Type)
	}
	return nil
}

// SetDirectory replaces the session's symbol directory.
func (s *Session) SetDirectory(entries []symbol.Entry) {
	s.store.SetDirectory(entries)
}

// Close tears the chart down and stops the quote stream.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	storeTok := s.storeTok
	quoteTok := s.quoteTok
	s.storeTok, s.quoteTok, s.quoteSym = nil, nil, ""
	s.mu.Unlock()

	if storeTok != nil {
		storeTok.Unsubscribe()
	}
	if quoteTok != nil {
		quoteTok.Unsubscribe()
	}
	s.driver.Stop()
}

// ── internal ─────────────────────────────────────────────────────────────────

func (s *Session) mountWidget(sym string, r bar.Resolution, feed *datafeed.DataFeed) (driver.Widget, error) {
	w := widget.Mount(feed, sym, r, s.sink, s.log)
	s.mu.Lock()
	s.widget = w
	s.mu.Unlock()
	return mounted{s: s, w: w}, nil
}

// mounted forgets the widget when the driver removes it, so commands fall
// back to the session once no chart is live.
type mounted struct {
	s *Session
	w *widget.Widget
}

func (m mounted) Remove() {
	m.s.mu.Lock()
	if m.s.widget == m.w {
		m.s.widget = nil
	}
	m.s.mu.Unlock()
	m.w.Remove()
}

func (s *Session) currentWidget() *widget.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.widget
}

// followQuotes moves the upstream quote subscription to sym.
func (s *Session) followQuotes(sym string) {
	s.mu.Lock()
	if s.closed || sym == s.quoteSym {
		s.mu.Unlock()
		return
	}
	old := s.quoteTok
	s.quoteTok, s.quoteSym = nil, sym
	s.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	if sym == "" {
		return
	}

	tok, err := s.deps.Source.SubscribeQuotes(sym, func(q quote.Quote) {
		s.store.SetQuote(q)
	})
	if err != nil {
		s.log.Warn("subscribe quotes", zap.String("symbol", sym), zap.Error(err))
		_ = s.sink.Send(widget.Event{Type: widget.EventError, Symbol: sym, Error: err.Error()})
		return
	}

	s.mu.Lock()
	if s.closed || s.quoteSym != sym {
		s.mu.Unlock()
		tok.Unsubscribe()
		return
	}
	s.quoteTok = tok
	s.mu.Unlock()
}
