// Package status holds the single line of text shown to the user and fans
// every change out to listeners such as the websocket hub.
package status

import (
	"sync"
	"time"

	"github.com/menta2k/watch-reader/pkg/types"
)

// ThinkingText is shown while a cycle is in flight
const ThinkingText = "Thinking..."

// State of the display
type State string

const (
	StateIdle     State = "idle"
	StateThinking State = "thinking"
	StateFinal    State = "final"
)

// Snapshot is what the display currently shows
type Snapshot struct {
	State     State     `json:"state"`
	Text      string    `json:"text"`
	CycleID   string    `json:"cycle_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener is called with every accepted snapshot
type Listener func(Snapshot)

// Display is the status surface. Updates for a cycle other than the current
// one, and all updates after Close, are dropped.
type Display struct {
	mu        sync.RWMutex
	current   Snapshot
	closed    bool
	listeners map[int]Listener
	nextID    int
}

// NewDisplay creates an idle display
func NewDisplay() *Display {
	return &Display{
		current:   Snapshot{State: StateIdle, UpdatedAt: time.Now()},
		listeners: make(map[int]Listener),
	}
}

// Begin shows the thinking indicator for a new cycle
func (d *Display) Begin(cycleID string) bool {
	return d.update(func(cur Snapshot) (Snapshot, bool) {
		return Snapshot{State: StateThinking, Text: ThinkingText, CycleID: cycleID}, true
	})
}

// Finish replaces the thinking indicator with the reading of the same cycle
func (d *Display) Finish(cycleID string, reading types.TimeReading) bool {
	return d.update(func(cur Snapshot) (Snapshot, bool) {
		if cur.CycleID != cycleID || cur.State != StateThinking {
			return cur, false
		}
		return Snapshot{State: StateFinal, Text: reading.Display(), CycleID: cycleID}, true
	})
}

// Fail shows an error that happened outside a cycle, such as a lost camera binding
func (d *Display) Fail(err error) bool {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	reading := types.NewFailure(msg)
	return d.update(func(cur Snapshot) (Snapshot, bool) {
		return Snapshot{State: StateFinal, Text: reading.Display()}, true
	})
}

// Current returns the latest snapshot
func (d *Display) Current() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Subscribe registers a listener and returns a function removing it
func (d *Display) Subscribe(fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.listeners[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Close disposes the display; later updates are ignored
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.listeners = make(map[int]Listener)
}

// Closed reports whether the display has been disposed
func (d *Display) Closed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Display) update(fn func(Snapshot) (Snapshot, bool)) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}

	next, ok := fn(d.current)
	if !ok {
		d.mu.Unlock()
		return false
	}
	next.UpdatedAt = time.Now()
	d.current = next

	listeners := make([]Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		listeners = append(listeners, l)
	}
	d.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return true
}
