package vlc

import (
	"github.com/genricoloni/karaplayer/internal/backend"
	"github.com/genricoloni/karaplayer/internal/domain"
)

// playerEvent is the subset of libVLC player events the backend listens to
type playerEvent int

const (
	eventPlaying playerEvent = iota
	eventPaused
	eventEndReached
	eventError
)

// translate turns a player event into the backend event it confirms and the
// handle state to commit. started tells whether the current media already
// reported playing once: libVLC signals both the first start and every
// resume as "playing".
func translate(ev playerEvent, started bool, state backend.State) (domain.BackendEvent, backend.State, bool) {
	switch ev {
	case eventPlaying:
		if !started {
			return domain.BackendEvent{Kind: domain.MediaStarted}, state, true
		}
		if state == backend.StatePaused {
			return domain.BackendEvent{Kind: domain.MediaResumed}, backend.StatePlaying, true
		}
	case eventPaused:
		if state == backend.StatePlaying {
			return domain.BackendEvent{Kind: domain.MediaPaused}, backend.StatePaused, true
		}
	case eventEndReached:
		return domain.BackendEvent{Kind: domain.MediaEndReached}, state, true
	case eventError:
		return domain.BackendEvent{Kind: domain.MediaError, Detail: "libvlc playback error"}, state, true
	}
	return domain.BackendEvent{}, state, false
}
