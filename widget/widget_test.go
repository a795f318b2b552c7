package widget

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan Event, 64)} }

func (r *recorder) Send(ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
	return nil
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

type history struct {
	mu     sync.Mutex
	params []bar.PeriodParams
}

func (h *history) get(info symbol.Info, r bar.Resolution, p bar.PeriodParams, onResult datafeed.HistoryCallback, onError datafeed.ErrorCallback) {
	h.mu.Lock()
	h.params = append(h.params, p)
	h.mu.Unlock()
	if info.Name == "FAIL" {
		onError("upstream down")
		return
	}
	onResult([]bar.Bar{{Time: 1000, Close: 1}, {Time: 2000, Close: 2}}, bar.HistoryMeta{})
}

func newFeed(h *history) *datafeed.DataFeed {
	conf := symbol.Configuration{SupportedResolutions: []bar.Resolution{"10", "30", "1D"}}
	return datafeed.New(datafeed.Options{
		Configuration: &conf,
		ResolveSymbol: func(name string, onResolved datafeed.ResolveCallback, _ datafeed.ErrorCallback) {
			onResolved(symbol.Info{Name: name})
		},
		GetBars: h.get,
		SearchSymbols: func(query, _, _ string, onResult datafeed.SearchCallback) {
			onResult([]symbol.SearchResult{{Symbol: query}})
		},
	})
}

func TestMountRunsLoadSequence(t *testing.T) {
	h := &history{}
	feed := newFeed(h)
	rec := newRecorder()

	w := Mount(feed, "AAPL", bar.ResolutionD, rec, nil)
	defer w.Remove()

	assert.Equal(t, EventConfig, rec.next(t).Type)
	sym := rec.next(t)
	assert.Equal(t, EventSymbol, sym.Type)
	assert.Equal(t, "AAPL", sym.Info.Name)
	hist := rec.next(t)
	assert.Equal(t, EventHistory, hist.Type)
	assert.Len(t, hist.Bars, 2)
	assert.Equal(t, w.ID(), hist.Widget)

	require.Eventually(t, func() bool { return feed.Subscriptions() == 1 }, time.Second, time.Millisecond)
	h.mu.Lock()
	assert.True(t, h.params[0].FirstDataRequest)
	h.mu.Unlock()

	feed.UpdateBar(bar.Bar{Time: 2000, Close: 3})
	ev := rec.next(t)
	assert.Equal(t, EventBar, ev.Type)
	assert.Equal(t, 3.0, ev.Bar.Close)
}

func TestResolveFailureStopsLoad(t *testing.T) {
	feed := datafeed.New(datafeed.Options{})
	rec := newRecorder()
	w := Mount(feed, "AAPL", bar.ResolutionD, rec, nil)
	defer w.Remove()

	assert.Equal(t, EventConfig, rec.next(t).Type)
	ev := rec.next(t)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, datafeed.ResolveErrorMessage, ev.Error)
	assert.Never(t, func() bool { return feed.Subscriptions() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHistoryErrorIsForwarded(t *testing.T) {
	rec := newRecorder()
	w := Mount(newFeed(&history{}), "FAIL", bar.ResolutionD, rec, nil)
	defer w.Remove()

	rec.next(t)
	rec.next(t)
	ev := rec.next(t)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "upstream down", ev.Error)
}

func TestLoadMoreEndsInNoData(t *testing.T) {
	h := &history{}
	feed := newFeed(h)
	rec := newRecorder()
	w := Mount(feed, "AAPL", bar.ResolutionD, rec, nil)
	defer w.Remove()
	for i := 0; i < 3; i++ {
		rec.next(t)
	}
	require.Eventually(t, func() bool { return feed.Subscriptions() == 1 }, time.Second, time.Millisecond)

	w.LoadMore()
	ev := rec.next(t)
	assert.Equal(t, EventNoData, ev.Type)
	// The pagination request never reaches the provider.
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.params, 1)
}

func TestSetResolutionResubscribes(t *testing.T) {
	h := &history{}
	feed := newFeed(h)
	rec := newRecorder()
	w := Mount(feed, "AAPL", bar.ResolutionD, rec, nil)
	defer w.Remove()
	for i := 0; i < 3; i++ {
		rec.next(t)
	}

	w.SetResolution(bar.Resolution30)
	ev := rec.next(t)
	assert.Equal(t, EventHistory, ev.Type)
	assert.Equal(t, bar.Resolution30, ev.Resolution)
	require.Eventually(t, func() bool { return feed.Subscriptions() == 1 && w.Resolution() == bar.Resolution30 }, time.Second, time.Millisecond)
}

func TestSearch(t *testing.T) {
	rec := newRecorder()
	w := Mount(newFeed(&history{}), "AAPL", bar.ResolutionD, rec, nil)
	defer w.Remove()
	for i := 0; i < 3; i++ {
		rec.next(t)
	}

	w.Search("MSFT", "", "")
	ev := rec.next(t)
	assert.Equal(t, EventSearch, ev.Type)
	assert.Equal(t, "MSFT", ev.Results[0].Symbol)
}

func TestRemoveSilencesWidget(t *testing.T) {
	feed := newFeed(&history{})
	rec := newRecorder()
	w := Mount(feed, "AAPL", bar.ResolutionD, rec, nil)
	for i := 0; i < 3; i++ {
		rec.next(t)
	}
	require.Eventually(t, func() bool { return feed.Subscriptions() == 1 }, time.Second, time.Millisecond)

	w.Remove()
	assert.Zero(t, feed.Subscriptions())
	feed.UpdateBar(bar.Bar{Time: 5000})
	select {
	case ev := <-rec.ch:
		t.Fatalf("unexpected event after remove: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	<-w.Done()
}

func TestSinkErrorsAreIgnored(t *testing.T) {
	calls := make(chan string, 8)
	sink := SinkFunc(func(ev Event) error {
		calls <- ev.Type
		return errors.New("client gone")
	})
	w := Mount(newFeed(&history{}), "AAPL", bar.ResolutionD, sink, nil)
	defer w.Remove()

	assert.Equal(t, EventConfig, <-calls)
	assert.Equal(t, EventSymbol, <-calls)
	assert.Equal(t, EventHistory, <-calls)
}
