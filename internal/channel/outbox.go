package channel

import (
	"sync"

	"github.com/genricoloni/karaplayer/internal/domain"
)

type pending struct {
	seq   uint64
	event domain.StatusEvent
}

// Outbox keeps status events until the server acknowledged the write.
// Events made pointless by a later one are dropped while queued.
type Outbox struct {
	mu    sync.Mutex
	items []pending
	seq   uint64
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// transient events only matter while their entry is in progress
func transient(kind domain.StatusKind) bool {
	return kind == domain.StatusPaused ||
		kind == domain.StatusResumed ||
		kind == domain.StatusUpdatedTiming
}

// Push appends an event, removing the queued events it supersedes
func (o *Outbox) Push(ev domain.StatusEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.items[:0]
	for _, it := range o.items {
		if supersedes(ev, it.event) {
			continue
		}
		kept = append(kept, it)
	}
	o.items = kept

	o.seq++
	o.items = append(o.items, pending{seq: o.seq, event: ev})
}

func supersedes(newer, older domain.StatusEvent) bool {
	switch newer.Kind {
	case domain.StatusReady, domain.StatusIdle:
		return older.Kind == newer.Kind
	}
	if newer.Kind.Terminal() {
		return transient(older.Kind) && older.EntryID == newer.EntryID
	}
	if transient(newer.Kind) {
		return transient(older.Kind) && older.EntryID == newer.EntryID
	}
	return false
}

// Peek returns the oldest undelivered event
func (o *Outbox) Peek() (uint64, domain.StatusEvent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return 0, domain.StatusEvent{}, false
	}
	return o.items[0].seq, o.items[0].event, true
}

// Ack removes a delivered event. Events superseded during the write are
// already gone.
func (o *Outbox) Ack(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, it := range o.items {
		if it.seq == seq {
			o.items = append(o.items[:i], o.items[i+1:]...)
			return
		}
	}
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Pending returns a copy of the queued events in delivery order
func (o *Outbox) Pending() []domain.StatusEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.StatusEvent, len(o.items))
	for i, it := range o.items {
		out[i] = it.event
	}
	return out
}
