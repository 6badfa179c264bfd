package channel

import (
	"testing"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/stretchr/testify/assert"
)

func kinds(events []domain.StatusEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Kind)
	}
	return out
}

func TestOutbox_Supersede(t *testing.T) {
	tests := []struct {
		name   string
		events []domain.StatusEvent
		want   []string
	}{
		{
			name: "Finished drops pending pause of the same entry",
			events: []domain.StatusEvent{
				{Kind: domain.StatusStarted, EntryID: 1},
				{Kind: domain.StatusPaused, EntryID: 1},
				{Kind: domain.StatusFinished, EntryID: 1},
			},
			want: []string{"started", "finished"},
		},
		{
			name: "Other entries are untouched",
			events: []domain.StatusEvent{
				{Kind: domain.StatusPaused, EntryID: 1},
				{Kind: domain.StatusFinished, EntryID: 2},
			},
			want: []string{"paused", "finished"},
		},
		{
			name: "Latest timing wins",
			events: []domain.StatusEvent{
				{Kind: domain.StatusPaused, EntryID: 1},
				{Kind: domain.StatusResumed, EntryID: 1},
				{Kind: domain.StatusUpdatedTiming, EntryID: 1},
			},
			want: []string{"updated_timing"},
		},
		{
			name: "Error drops pending timing",
			events: []domain.StatusEvent{
				{Kind: domain.StatusUpdatedTiming, EntryID: 1},
				{Kind: domain.StatusError, EntryID: 1},
				{Kind: domain.StatusFinished, EntryID: 1},
			},
			want: []string{"error", "finished"},
		},
		{
			name: "Ready and idle keep only the newest",
			events: []domain.StatusEvent{
				{Kind: domain.StatusReady},
				{Kind: domain.StatusIdle},
				{Kind: domain.StatusTransitionStarted, EntryID: 3},
				{Kind: domain.StatusIdle},
				{Kind: domain.StatusReady},
			},
			want: []string{"transition_started", "idle", "ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOutbox()
			for _, ev := range tt.events {
				o.Push(ev)
			}
			assert.Equal(t, tt.want, kinds(o.Pending()))
		})
	}
}

func TestOutbox_AckAfterSupersede(t *testing.T) {
	o := NewOutbox()
	o.Push(domain.StatusEvent{Kind: domain.StatusPaused, EntryID: 1})

	seq, ev, ok := o.Peek()
	assert.True(t, ok)
	assert.Equal(t, domain.StatusPaused, ev.Kind)

	// superseded while being written
	o.Push(domain.StatusEvent{Kind: domain.StatusFinished, EntryID: 1})
	o.Ack(seq)

	assert.Equal(t, []string{"finished"}, kinds(o.Pending()))

	seq, _, _ = o.Peek()
	o.Ack(seq)
	_, _, ok = o.Peek()
	assert.False(t, ok)
	assert.Equal(t, 0, o.Len())
}
