package datafeed

import (
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

// subscription is one realtime registration made by the widget.
type subscription struct {
	info        symbol.Info
	resolution  bar.Resolution
	lastBarTime *int64
	listener    BarCallback
	onReset     ResetCacheCallback
}

// SubscribeBars registers listener under subscriberID. A second call with an
// id that is already registered is ignored; the first registration wins.
func (f *DataFeed) SubscribeBars(info symbol.Info, resolution bar.Resolution, onRealtime BarCallback, subscriberID string, onResetCacheNeeded ResetCacheCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[subscriberID]; ok {
		return
	}
	f.subs[subscriberID] = &subscription{
		info:       info,
		resolution: resolution,
		listener:   onRealtime,
		onReset:    onResetCacheNeeded,
	}
}

// UnsubscribeBars removes the registration for subscriberID, if any.
func (f *DataFeed) UnsubscribeBars(subscriberID string) {
	f.mu.Lock()
	delete(f.subs, subscriberID)
	f.mu.Unlock()
}

// UpdateBar pushes b to every subscription whose last delivered bar is not
// newer than b. A delivered bar becomes the subscription's lastBarTime, so
// an out-of-order update can never rewind a chart.
func (f *DataFeed) UpdateBar(b bar.Bar) {
	f.mu.Lock()
	listeners := make([]BarCallback, 0, len(f.subs))
	for _, s := range f.subs {
		if s.lastBarTime != nil && b.Time < *s.lastBarTime {
			continue
		}
		t := b.Time
		s.lastBarTime = &t
		if s.listener != nil {
			listeners = append(listeners, s.listener)
		}
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(b)
	}
}

// ResetCache asks every subscriber to drop its cached bars.
func (f *DataFeed) ResetCache() {
	f.mu.Lock()
	resets := make([]ResetCacheCallback, 0, len(f.subs))
	for _, s := range f.subs {
		if s.onReset != nil {
			resets = append(resets, s.onReset)
		}
	}
	f.mu.Unlock()

	for _, r := range resets {
		r()
	}
}

// Subscriptions returns the number of active registrations.
func (f *DataFeed) Subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close drops every registration. Later UpdateBar calls reach nobody.
func (f *DataFeed) Close() {
	f.mu.Lock()
	f.subs = make(map[string]*subscription)
	f.mu.Unlock()
}
