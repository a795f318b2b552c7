// Package store is the host state container shared by the panels of one
// session: the selected-symbol list, the symbol directory and the latest
// quote snapshot. Observers subscribe per event kind and receive events in
// subscription order.
package store

import (
	"slices"
	"sync"

	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/symbol"
)

// Kind selects which state change an observer is notified about.
type Kind int

const (
	SymbolSelected Kind = iota
	QuoteUpdated
	DirectoryUpdated
)

func (k Kind) String() string {
	switch k {
	case SymbolSelected:
		return "symbol_selected"
	case QuoteUpdated:
		return "quote_updated"
	case DirectoryUpdated:
		return "directory_updated"
	default:
		return "unknown"
	}
}

// Event carries the state after a change. Only the field matching Kind is
// set.
type Event struct {
	Kind      Kind
	Symbols   []string
	Quote     quote.Quote
	Directory []symbol.Entry
}

// Handler is called outside the store's lock.
type Handler func(Event)

// Token cancels one observer registration.
type Token interface {
	Unsubscribe()
}

type Store struct {
	mu        sync.Mutex
	selected  []string
	directory []symbol.Entry
	quote     quote.Quote
	haveQuote bool

	handlers map[Kind]map[uint64]Handler
	nextID   uint64
}

// storeToken cancels a single handler registration.
type storeToken struct {
	id    uint64
	kind  Kind
	store *Store
	once  sync.Once
}

func (t *storeToken) Unsubscribe() {
	t.once.Do(func() {
		t.store.mu.Lock()
		delete(t.store.handlers[t.kind], t.id)
		t.store.mu.Unlock()
	})
}

func New() *Store {
	return &Store{handlers: make(map[Kind]map[uint64]Handler)}
}

// Subscribe registers h for events of kind. Events published after
// Subscribe returns are delivered until the token is cancelled.
func (s *Store) Subscribe(kind Kind, h Handler) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.handlers[kind] == nil {
		s.handlers[kind] = make(map[uint64]Handler)
	}
	s.handlers[kind][id] = h
	return &storeToken{id: id, kind: kind, store: s}
}

// SelectSymbols replaces the selected-symbol list. The first entry is the
// chart's symbol.
func (s *Store) SelectSymbols(symbols []string) {
	s.mu.Lock()
	s.selected = slices.Clone(symbols)
	ev := Event{Kind: SymbolSelected, Symbols: slices.Clone(s.selected)}
	hs := s.snapshotHandlers(SymbolSelected)
	s.mu.Unlock()

	publish(hs, ev)
}

// SelectSymbol moves sym to the front of the selection, adding it when
// absent.
func (s *Store) SelectSymbol(sym string) {
	s.mu.Lock()
	next := make([]string, 0, len(s.selected)+1)
	next = append(next, sym)
	for _, v := range s.selected {
		if v != sym {
			next = append(next, v)
		}
	}
	s.selected = next
	ev := Event{Kind: SymbolSelected, Symbols: slices.Clone(next)}
	hs := s.snapshotHandlers(SymbolSelected)
	s.mu.Unlock()

	publish(hs, ev)
}

func (s *Store) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// Primary returns the first selected symbol, or "" when nothing is
// selected.
func (s *Store) Primary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selected) == 0 {
		return ""
	}
	return s.selected[0]
}

func (s *Store) SetDirectory(entries []symbol.Entry) {
	s.mu.Lock()
	s.directory = slices.Clone(entries)
	ev := Event{Kind: DirectoryUpdated, Directory: slices.Clone(entries)}
	hs := s.snapshotHandlers(DirectoryUpdated)
	s.mu.Unlock()

	publish(hs, ev)
}

// Directory returns a copy of the cached symbol directory.
func (s *Store) Directory() []symbol.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.directory)
}

// SetQuote replaces the quote snapshot. Only the latest quote is kept.
func (s *Store) SetQuote(q quote.Quote) {
	s.mu.Lock()
	s.quote, s.haveQuote = q, true
	hs := s.snapshotHandlers(QuoteUpdated)
	s.mu.Unlock()

	publish(hs, Event{Kind: QuoteUpdated, Quote: q})
}

func (s *Store) Quote() (quote.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote, s.haveQuote
}

// Observers returns the number of live registrations for kind.
func (s *Store) Observers(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[kind])
}

// ── internal ─────────────────────────────────────────────────────────────────

// snapshotHandlers returns the handlers for kind in registration order
// (called under lock).
func (s *Store) snapshotHandlers(kind Kind) []Handler {
	ids := make([]uint64, 0, len(s.handlers[kind]))
	for id := range s.handlers[kind] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[kind][id])
	}
	return hs
}

func publish(hs []Handler, ev Event) {
	for _, h := range hs {
		h(ev)
	}
}
