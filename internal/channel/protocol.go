package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/genricoloni/karaplayer/internal/domain"
)

const (
	typePlaylistEntry = "playlist_entry"
	typeIdle          = "idle"
	typeCommand       = "command"
	typeStatus        = "status"
	typeReady         = "ready"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type commandData struct {
	Command string  `json:"command"`
	Seconds float64 `json:"seconds,omitempty"`
}

type statusData struct {
	Event           string    `json:"event"`
	PlaylistEntryID *int      `json:"playlist_entry_id"`
	Timing          *int      `json:"timing,omitempty"`
	Message         string    `json:"message,omitempty"`
	Date            time.Time `json:"date"`
}

// commandKinds maps wire command names; "play" resumes a paused song
var commandKinds = map[string]domain.CommandKind{
	"play":         domain.CommandResume,
	"pause":        domain.CommandPause,
	"resume":       domain.CommandResume,
	"stop":         domain.CommandStop,
	"skip":         domain.CommandSkip,
	"restart":      domain.CommandRestart,
	"rewind":       domain.CommandRewind,
	"fast_forward": domain.CommandFastForward,
}

// decode turns an inbound message into a command
func decode(raw []byte) (domain.Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Command{}, fmt.Errorf("invalid message: %w", err)
	}

	switch env.Type {
	case typePlaylistEntry:
		var entry domain.PlaylistEntry
		if err := json.Unmarshal(env.Data, &entry); err != nil {
			return domain.Command{}, fmt.Errorf("invalid playlist entry: %w", err)
		}
		return domain.Command{Kind: domain.CommandPlay, Entry: &entry}, nil

	case typeIdle:
		return domain.Command{Kind: domain.CommandIdle}, nil

	case typeCommand:
		var data commandData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return domain.Command{}, fmt.Errorf("invalid command: %w", err)
		}
		kind, ok := commandKinds[data.Command]
		if !ok {
			return domain.Command{}, fmt.Errorf("unknown command %q", data.Command)
		}
		return domain.Command{Kind: kind, Seconds: data.Seconds}, nil
	}

	return domain.Command{}, fmt.Errorf("unknown message type %q", env.Type)
}

// encode serializes an outbound status event
func encode(ev domain.StatusEvent) ([]byte, error) {
	if ev.Kind == domain.StatusReady {
		return json.Marshal(envelope{Type: typeReady})
	}

	data := statusData{
		Event:   string(ev.Kind),
		Message: ev.Message,
		Date:    ev.Time.UTC(),
	}
	if ev.EntryID != 0 {
		id := ev.EntryID
		data.PlaylistEntryID = &id
	}
	switch ev.Kind {
	case domain.StatusPaused, domain.StatusResumed, domain.StatusUpdatedTiming:
		timing := ev.Timing
		data.Timing = &timing
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return json.Marshal(envelope{Type: typeStatus, Data: raw})
}
