package form

import (
	"strings"
	"sync"
)

// What is a bit set describing which observable fields a write touched.
type What uint8

const (
	ChangedValues What = 1 << iota
	ChangedErrors
	ChangedSubmitting
)

// Has reports whether every bit of flag is set.
func (w What) Has(flag What) bool {
	return w&flag == flag && flag != 0
}

func (w What) String() string {
	var parts []string
	if w.Has(ChangedValues) {
		parts = append(parts, "values")
	}
	if w.Has(ChangedErrors) {
		parts = append(parts, "errors")
	}
	if w.Has(ChangedSubmitting) {
		parts = append(parts, "submitting")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Snapshot is a deep copy of the observable state.
type Snapshot struct {
	Values       map[string]any `json:"values"`
	Errors       Errors         `json:"errors"`
	IsSubmitting bool           `json:"isSubmitting"`
	// Version increases with every observable write.
	Version uint64 `json:"version"`
}

// Change is delivered to subscribers after a write.
type Change struct {
	What     What
	Snapshot Snapshot
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// notification is prepared under the store lock and sent after it is
// released, so listeners may call back into the store.
type notification struct {
	change    Change
	listeners []func(Change)
}

func (n notification) send() {
	for _, fn := range n.listeners {
		fn(n.change)
	}
}

// Subscribe registers fn to run after every observable write. Listeners run
// synchronously on the writing goroutine, in registration order, after the
// write is visible to readers. Writers on different goroutines may deliver
// changes out of order; Snapshot.Version orders them. The returned function
// removes the listener and is safe to call more than once.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSubscriber++
	id := s.nextSubscriber
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// changeLocked records a write. The caller holds s.mu.
func (s *Store) changeLocked(what What) notification {
	if what == 0 {
		return notification{}
	}
	s.version++
	if len(s.subscribers) == 0 {
		return notification{}
	}
	listeners := make([]func(Change), len(s.subscribers))
	for i, sub := range s.subscribers {
		listeners[i] = sub.fn
	}
	return notification{
		change:    Change{What: what, Snapshot: s.snapshotLocked()},
		listeners: listeners,
	}
}
