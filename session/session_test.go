package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/driver"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/symbol"
	"github.com/yitech/chartfeed/widget"
)

type quoteSub struct {
	symbol   string
	handler  adapter.QuoteHandler
	canceled bool
}

type fakeSource struct {
	mu   sync.Mutex
	subs []*quoteSub
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Resolutions() []bar.Resolution {
	return []bar.Resolution{bar.Resolution10, bar.Resolution30, bar.ResolutionD}
}

func (s *fakeSource) History(_ context.Context, sym string, r bar.Resolution) ([]adapter.Record, error) {
	return []adapter.Record{
		{Timestamp: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: 2000, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}, nil
}

func (s *fakeSource) SubscribeQuotes(sym string, h adapter.QuoteHandler) (adapter.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &quoteSub{symbol: sym, handler: h}
	s.subs = append(s.subs, sub)
	return tokenFunc(func() {
		s.mu.Lock()
		sub.canceled = true
		s.mu.Unlock()
	}), nil
}

func (s *fakeSource) Close() error { return nil }

// publish delivers q to every live subscription for q.Symbol.
func (s *fakeSource) publish(q quote.Quote) {
	s.mu.Lock()
	var hs []adapter.QuoteHandler
	for _, sub := range s.subs {
		if !sub.canceled && sub.symbol == q.Symbol {
			hs = append(hs, sub.handler)
		}
	}
	s.mu.Unlock()
	for _, h := range hs {
		h(q)
	}
}

func (s *fakeSource) live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, sub := range s.subs {
		if !sub.canceled {
			out = append(out, sub.symbol)
		}
	}
	return out
}

type tokenFunc func()

func (f tokenFunc) Unsubscribe() { f() }

type recorder struct {
	ch chan widget.Event
}

func (r *recorder) Send(ev widget.Event) error {
	r.ch <- ev
	return nil
}

// waitFor skips events until one of type typ arrives.
func (r *recorder) waitFor(t *testing.T, typ string) widget.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
			return widget.Event{}
		}
	}
}

func newTestManager(src *fakeSource) *Manager {
	return NewManager(Deps{
		Source:     src,
		Location:   time.UTC,
		Resolution: bar.ResolutionD,
		Log:        zap.NewNop(),
	}, []symbol.Entry{{Symbol: "AAPL", Name: "Apple Inc."}, {Symbol: "MSFT", Name: "Microsoft"}})
}

func TestSessionStreamsHistoryThenBars(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src)
	rec := &recorder{ch: make(chan widget.Event, 64)}
	s := m.Open(rec)
	defer m.Close(s)

	require.NoError(t, s.Start([]string{"AAPL"}))
	hist := rec.waitFor(t, widget.EventHistory)
	assert.Len(t, hist.Bars, 2)
	assert.Equal(t, []string{"AAPL"}, src.live())

	require.Eventually(t, func() bool {
		return s.Driver().Feed() != nil && s.Driver().Feed().Subscriptions() == 1
	}, time.Second, time.Millisecond)

	src.publish(quote.Quote{Symbol: "AAPL", LatestPrice: 2.25})
	ev := rec.waitFor(t, widget.EventBar)
	assert.Equal(t, int64(2000), ev.Bar.Time)
	assert.Equal(t, 2.25, ev.Bar.Close)
	assert.Equal(t, driver.Streaming, s.Driver().Snapshot().State)
}

func TestSessionFollowsChartSymbol(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src)
	rec := &recorder{ch: make(chan widget.Event, 64)}
	s := m.Open(rec)
	defer m.Close(s)
	require.NoError(t, s.Start([]string{"AAPL"}))
	rec.waitFor(t, widget.EventHistory)

	require.NoError(t, s.Handle(Command{Type: CmdChartSymbol, Symbol: "MSFT"}))
	sym := rec.waitFor(t, widget.EventSymbol)
	assert.Equal(t, "MSFT", sym.Info.Name)
	assert.Equal(t, "Microsoft", sym.Info.Description)
	assert.Equal(t, []string{"MSFT", "AAPL"}, s.Store().Selected())
	assert.Equal(t, []string{"MSFT"}, src.live())
}

func TestSessionCommands(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src)
	rec := &recorder{ch: make(chan widget.Event, 64)}
	s := m.Open(rec)
	defer m.Close(s)
	require.NoError(t, s.Start(nil))

	// No chart yet: search answers from the directory directly.
	require.NoError(t, s.Handle(Command{Type: CmdSearch, Query: "ms"}))
	ev := rec.waitFor(t, widget.EventSearch)
	require.Len(t, ev.Results, 1)
	assert.Equal(t, "MSFT", ev.Results[0].Symbol)

	require.NoError(t, s.Handle(Command{Type: CmdSelect, Symbol: "AAPL"}))
	rec.waitFor(t, widget.EventHistory)

	require.NoError(t, s.Handle(Command{Type: CmdResolution, Resolution: bar.Resolution30}))
	hist := rec.waitFor(t, widget.EventHistory)
	assert.Equal(t, bar.Resolution30, hist.Resolution)
	assert.Equal(t, bar.Resolution30, s.Driver().Snapshot().Resolution)

	require.NoError(t, s.Handle(Command{Type: CmdMore}))
	rec.waitFor(t, widget.EventNoData)

	assert.Error(t, s.Handle(Command{Type: CmdResolution}))
	assert.Error(t, s.Handle(Command{Type: "dance"}))
}

func TestManagerDirectoryAndClose(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src)
	rec := &recorder{ch: make(chan widget.Event, 64)}
	s := m.Open(rec)
	require.NoError(t, s.Start([]string{"AAPL"}))
	rec.waitFor(t, widget.EventHistory)
	assert.Equal(t, 1, m.Len())

	m.SetDirectory([]symbol.Entry{{Symbol: "NVDA", Name: "NVIDIA"}})
	assert.Equal(t, "NVDA", s.Store().Directory()[0].Symbol)
	assert.Equal(t, "NVDA", m.Directory()[0].Symbol)

	m.CloseAll()
	assert.Zero(t, m.Len())
	assert.Empty(t, src.live())
	assert.Equal(t, driver.TornDown, s.Driver().Snapshot().State)
}

func TestSessionSearchAfterDeselect(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src)
	rec := &recorder{ch: make(chan widget.Event, 64)}
	s := m.Open(rec)
	defer m.Close(s)
	require.NoError(t, s.Start([]string{"AAPL"}))
	rec.waitFor(t, widget.EventHistory)

	require.NoError(t, s.Handle(Command{Type: CmdSelect}))
	require.Eventually(t, func() bool {
		return s.Driver().Snapshot().State == driver.Idle && s.currentWidget() == nil
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Handle(Command{Type: CmdSearch, Query: "aa"}))
	ev := rec.waitFor(t, widget.EventSearch)
	require.Len(t, ev.Results, 1)
	assert.Equal(t, "AAPL", ev.Results[0].Symbol)

	// Nothing is mounted, so these are no-ops rather than errors.
	require.NoError(t, s.Handle(Command{Type: CmdMore}))
	require.NoError(t, s.Handle(Command{Type: CmdResolution, Resolution: bar.Resolution30}))
}
