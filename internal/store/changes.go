package store

import "sync"

// Op classifies a store mutation for change subscribers.
type Op string

const (
	OpPut    Op = "put"    // insert or full replace
	OpDelete Op = "delete" // row removed
)

// Change describes one committed mutation. Entity carries the written value
// (the operation's known result, not a re-query) for put operations; it is
// nil for deletes. Table names match the schema table names.
type Change struct {
	Table  string
	Op     Op
	ID     string
	Entity any
}

// Subscription detaches a change subscriber when closed.
type Subscription struct {
	once sync.Once
	stop func()
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

// subscribers fans committed changes out to registered callbacks.
// Notification is synchronous within the mutating call, so projection
// staleness is bounded by one call.
type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Change)
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[int]func(Change))}
}

// Subscribe registers fn for every committed mutation until the returned
// subscription is closed. The callback runs on the mutating goroutine and
// must not call back into mutating store operations.
func (s *Store) Subscribe(fn func(Change)) *Subscription {
	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()

	id := s.subs.next
	s.subs.next++
	s.subs.fns[id] = fn

	return &Subscription{stop: func() {
		s.subs.mu.Lock()
		defer s.subs.mu.Unlock()
		delete(s.subs.fns, id)
	}}
}

// notify delivers a change to all subscribers. Called after commit only.
func (s *Store) notify(c Change) {
	s.subs.mu.RLock()
	fns := make([]func(Change), 0, len(s.subs.fns))
	for _, fn := range s.subs.fns {
		fns = append(fns, fn)
	}
	s.subs.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
