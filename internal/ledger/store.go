package ledger

import (
	"sync"

	"github.com/julianstephens/qada/internal/models"
)

// State is what the store exposes to its readers.
type State struct {
	Account   string
	Aggregate models.Aggregate
	Settings  models.Settings
}

// Listener receives a copy of the state after every change.
type Listener func(State)

// Store is the in-memory view of one signed-in account. It is updated
// optimistically ahead of the durable store and overwritten on reconcile.
// Its lifecycle is explicit: New, Reset on sign-out, Close on teardown.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// New creates an empty store with default settings.
func New() *Store {
	return &Store{
		state:     emptyState(),
		listeners: make(map[int]Listener),
	}
}

func emptyState() State {
	return State{
		Aggregate: models.Aggregate{History: models.DailyHistory{}},
		Settings:  models.DefaultSettings(),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	out := s.state
	out.Aggregate = Clone(s.state.Aggregate)
	if s.state.Settings.HabitRule != nil {
		rule := *s.state.Settings.HabitRule
		out.Settings.HabitRule = &rule
	}
	return out
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Subscribing to a closed store is a no-op.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Apply folds entries into the counters in order.
func (s *Store) Apply(entries ...models.LedgerEntry) {
	if len(entries) == 0 {
		return
	}
	s.update(func(st *State) {
		for _, e := range entries {
			Apply(&st.Aggregate, e)
		}
	})
}

// ReplaceAggregate overwrites every counter with agg, discarding optimistic state.
func (s *Store) ReplaceAggregate(agg models.Aggregate) {
	s.update(func(st *State) {
		st.Aggregate = Clone(agg)
	})
}

// SetSettings replaces the cached settings document.
func (s *Store) SetSettings(settings models.Settings) {
	s.update(func(st *State) {
		st.Settings = settings
	})
}

// SetAccount records the signed-in account and clears any previous state.
func (s *Store) SetAccount(accountID string) {
	s.update(func(st *State) {
		*st = emptyState()
		st.Account = accountID
	})
}

// Reset clears all state, e.g. on sign-out.
func (s *Store) Reset() {
	s.update(func(st *State) {
		*st = emptyState()
	})
}

// Close drops every listener. The store keeps serving reads, but no
// further notifications are sent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[int]Listener)
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	if s.closed || len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.copyLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	// Notify outside the lock so listeners may read the store
	for _, l := range listeners {
		l(snap)
	}
}
