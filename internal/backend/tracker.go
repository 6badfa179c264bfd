// Package backend holds the bookkeeping shared by the media player backends:
// handle states and per-handle event streams.
package backend

import (
	"fmt"
	"sync"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/intake"
	"github.com/google/uuid"
)

// State of a loaded handle
type State int

const (
	StateLoaded State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

type entry struct {
	state  State
	media  domain.Media
	stream *intake.Queue[domain.BackendEvent]
}

// Tracker validates handle operations and owns handle event streams.
// It is safe for concurrent use: backends call Emit from their event
// threads while the state machine drives operations.
type Tracker struct {
	mu      sync.Mutex
	handles map[domain.Handle]*entry
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{handles: make(map[domain.Handle]*entry)}
}

// Register creates a new handle in the loaded state
func (t *Tracker) Register(media domain.Media) domain.Handle {
	h := domain.Handle(uuid.NewString())
	e := &entry{
		state:  StateLoaded,
		media:  media,
		stream: intake.New[domain.BackendEvent](),
	}

	t.mu.Lock()
	t.handles[h] = e
	t.mu.Unlock()
	return h
}

// Media returns what a handle was loaded with
func (t *Tracker) Media(h domain.Handle) (domain.Media, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		return domain.Media{}, fmt.Errorf("unknown handle %s: %w", h, domain.ErrInvalidState)
	}
	return e.media, nil
}

// State returns the state of a handle
func (t *Tracker) State(h domain.Handle) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		return 0, fmt.Errorf("unknown handle %s: %w", h, domain.ErrInvalidState)
	}
	return e.state, nil
}

// Check returns ErrInvalidState unless the handle is in one of the given states
func (t *Tracker) Check(h domain.Handle, allowed ...State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		return fmt.Errorf("unknown handle %s: %w", h, domain.ErrInvalidState)
	}
	for _, s := range allowed {
		if e.state == s {
			return nil
		}
	}
	return fmt.Errorf("handle %s is %s: %w", h, e.state, domain.ErrInvalidState)
}

// Set moves a handle to a new state; unknown handles are ignored
func (t *Tracker) Set(h domain.Handle, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.handles[h]; ok {
		e.state = s
	}
}

// Emit pushes an event on the handle's stream. Events for released
// handles are dropped and reported as false.
func (t *Tracker) Emit(ev domain.BackendEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[ev.Handle]
	if !ok {
		return false
	}
	return e.stream.Push(ev)
}

// Subscribe returns the event stream of a handle. Unknown handles get a
// closed channel.
func (t *Tracker) Subscribe(h domain.Handle) <-chan domain.BackendEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		ch := make(chan domain.BackendEvent)
		close(ch)
		return ch
	}
	return e.stream.Out()
}

// Release forgets a handle and closes its stream
func (t *Tracker) Release(h domain.Handle) bool {
	t.mu.Lock()
	e, ok := t.handles[h]
	delete(t.handles, h)
	t.mu.Unlock()

	if ok {
		e.stream.Close()
	}
	return ok
}

// Handles returns the live handles
func (t *Tracker) Handles() []domain.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Handle, 0, len(t.handles))
	for h := range t.handles {
		out = append(out, h)
	}
	return out
}

// ReleaseAll closes every stream
func (t *Tracker) ReleaseAll() {
	for _, h := range t.Handles() {
		t.Release(h)
	}
}
