package controller

import (
	"sync"

	"github.com/genricoloni/karaplayer/internal/domain"
)

// EntryQueue holds the entry on screen and at most one waiting entry.
// Entries are played once: an entry already taken is rejected.
type EntryQueue struct {
	mu      sync.Mutex
	current *domain.PlaylistEntry
	next    *domain.PlaylistEntry
	played  map[int]struct{}
}

func NewEntryQueue() *EntryQueue {
	return &EntryQueue{played: make(map[int]struct{})}
}

// Offer queues an entry as the next one, replacing a waiting entry.
// It reports false for entries already played or already waiting.
func (q *EntryQueue) Offer(entry *domain.PlaylistEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, done := q.played[entry.ID]; done {
		return false
	}
	if q.next != nil && q.next.ID == entry.ID {
		return false
	}
	q.next = entry
	return true
}

// TakeNext promotes the waiting entry to current
func (q *EntryQueue) TakeNext() *domain.PlaylistEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next == nil {
		return nil
	}
	q.current, q.next = q.next, nil
	q.played[q.current.ID] = struct{}{}
	return q.current
}

// Done clears the current entry once its lifecycle ended
func (q *EntryQueue) Done(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.ID == id {
		q.current = nil
	}
}

// Clear forgets both entries; the played set is kept
func (q *EntryQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current, q.next = nil, nil
}

func (q *EntryQueue) ClearNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next = nil
}

func (q *EntryQueue) Current() *domain.PlaylistEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Waiting reports whether an entry is queued after the current one
func (q *EntryQueue) Waiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next != nil
}

// Empty reports whether nothing is playing nor waiting
func (q *EntryQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current == nil && q.next == nil
}
