package domain

import (
	"errors"
	"time"
)

var (
	// ErrLoadFailed is returned when a backend cannot load a media file
	ErrLoadFailed = errors.New("media load failed")
	// ErrInvalidState is returned when an operation does not fit the handle's state
	ErrInvalidState = errors.New("invalid handle state")
	// ErrSyntax marks a template or subtitle that could not be parsed
	ErrSyntax = errors.New("template syntax error")
	// ErrMissingVariable marks a template referencing an absent context value
	ErrMissingVariable = errors.New("template variable missing")
	// ErrResourceNotFound is returned when neither a user nor a packaged resource exists
	ErrResourceNotFound = errors.New("resource not found")
	// ErrDisconnected is returned by the channel while no connection is up
	ErrDisconnected = errors.New("channel disconnected")
)

// Artist of a song
type Artist struct {
	Name string `json:"name"`
}

// WorkType describes the kind of work a song belongs to (anime, game...)
type WorkType struct {
	Name     string `json:"name"`
	IconName string `json:"icon_name"`
}

// Work is the piece a song is linked to
type Work struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	WorkType WorkType `json:"work_type"`
}

// WorkLink ties a song to a work (e.g. second opening of a series)
type WorkLink struct {
	Work           Work   `json:"work"`
	LinkType       string `json:"link_type"`
	LinkTypeNumber *int   `json:"link_type_number"`
	Episodes       string `json:"episodes"`
}

// Song holds the metadata of a karaoke file
type Song struct {
	Title    string     `json:"title"`
	Duration float64    `json:"duration"` // seconds
	FilePath string     `json:"file_path"`
	Artists  []Artist   `json:"artists"`
	Works    []WorkLink `json:"works"`
}

// Owner is the user who queued an entry
type Owner struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// PlaylistEntry is one song queued by the server
type PlaylistEntry struct {
	ID              int       `json:"id"`
	Song            Song      `json:"song"`
	Owner           Owner     `json:"owner"`
	UseInstrumental bool      `json:"use_instrumental"`
	DateCreated     time.Time `json:"date_created"`
}

// CommandKind enumerates transport commands
type CommandKind string

const (
	CommandPlay        CommandKind = "play"
	CommandPause       CommandKind = "pause"
	CommandResume      CommandKind = "resume"
	CommandStop        CommandKind = "stop"
	CommandSkip        CommandKind = "skip"
	CommandRestart     CommandKind = "restart"
	CommandRewind      CommandKind = "rewind"
	CommandFastForward CommandKind = "fast_forward"
	// CommandIdle is sent when the server has nothing to play: the waiting
	// entry is dropped and the idle screen comes back without reporting the
	// interrupted entry
	CommandIdle        CommandKind = "idle"
)

// Command is a request coming from the remote controller.
// Entry is only set for CommandPlay; Seconds of zero means the configured step.
type Command struct {
	Kind    CommandKind
	Entry   *PlaylistEntry
	Seconds float64
}

// StatusKind enumerates the status events reported to the server
type StatusKind string

const (
	StatusTransitionStarted StatusKind = "transition_started"
	StatusStarted           StatusKind = "started"
	StatusPaused            StatusKind = "paused"
	StatusResumed           StatusKind = "resumed"
	StatusFinished          StatusKind = "finished"
	StatusError             StatusKind = "error"
	StatusIdle              StatusKind = "idle"
	StatusCouldNotPlay      StatusKind = "could_not_play"
	StatusUpdatedTiming     StatusKind = "updated_timing"
	StatusReady             StatusKind = "ready"
)

// Terminal reports whether the event closes the lifecycle of its entry
func (k StatusKind) Terminal() bool {
	return k == StatusFinished || k == StatusError || k == StatusCouldNotPlay
}

// StatusEvent is sent to the server in commit order
type StatusEvent struct {
	Kind    StatusKind
	EntryID int
	Timing  int // seconds into the song, for paused/resumed/updated_timing
	Message string
	Time    time.Time
}

// LifecycleKind is what the state machine commits for an entry
type LifecycleKind int

const (
	LifecycleTransitionStarted LifecycleKind = iota
	LifecycleStarted
	LifecyclePaused
	LifecycleResumed
	LifecycleFinished
	LifecycleError
	LifecycleCouldNotPlay
	LifecycleUpdatedTiming
	LifecycleIdle
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleTransitionStarted:
		return "transition_started"
	case LifecycleStarted:
		return "started"
	case LifecyclePaused:
		return "paused"
	case LifecycleResumed:
		return "resumed"
	case LifecycleFinished:
		return "finished"
	case LifecycleError:
		return "error"
	case LifecycleCouldNotPlay:
		return "could_not_play"
	case LifecycleUpdatedTiming:
		return "updated_timing"
	case LifecycleIdle:
		return "idle"
	}
	return "unknown"
}

// Lifecycle is a committed state machine transition.
// Entry is nil for LifecycleIdle and for errors on the idle screen.
type Lifecycle struct {
	Kind     LifecycleKind
	Entry    *PlaylistEntry
	Position float64
	Message  string
}

// Handle names a media item loaded in a backend
type Handle string

// Media is a single load request for a backend
type Media struct {
	// Path of the video, audio or still image to display
	Path string
	// SubtitlePath is an optional ASS file overlaid on the media
	SubtitlePath string
	// AudioPath replaces the media audio track (instrumental playback)
	AudioPath string
	// Still is set for images, which never end on their own
	Still bool
}

// BackendEventKind enumerates asynchronous backend notifications
type BackendEventKind int

const (
	MediaStarted BackendEventKind = iota
	MediaPaused
	MediaResumed
	MediaEndReached
	MediaError
)

func (k BackendEventKind) String() string {
	switch k {
	case MediaStarted:
		return "started"
	case MediaPaused:
		return "paused"
	case MediaResumed:
		return "resumed"
	case MediaEndReached:
		return "end_reached"
	case MediaError:
		return "error"
	}
	return "unknown"
}

// BackendEvent is emitted on the stream of the handle it concerns
type BackendEvent struct {
	Kind   BackendEventKind
	Handle Handle
	Detail string
}

// StartupOptions are applied to a backend before its window is created
type StartupOptions struct {
	// Args are passed to the player instance (mpv flags, libvlc parameters)
	Args []string
	// MediaOptions are added to every loaded media
	MediaOptions []string
}

// Screen names an overlay the renderer can produce
type Screen string

const (
	ScreenIdle       Screen = "idle"
	ScreenTransition Screen = "transition"
	ScreenSong       Screen = "song"
)

// TemplateContext feeds a subtitle template
type TemplateContext struct {
	Entry  *PlaylistEntry
	FadeIn bool
	Notes  []string
}

// ScreenResolution holds the display dimensions
type ScreenResolution struct {
	Width  int
	Height int
}

// seekMargin keeps seeks from landing exactly on the end of the media,
// which some players treat as end-of-file.
const seekMargin = time.Second

// ClampPosition bounds a seek target to [0, duration). A zero or unknown
// duration only clamps the lower bound.
func ClampPosition(position, duration float64) float64 {
	if position < 0 {
		return 0
	}
	if duration <= 0 {
		return position
	}
	upper := duration - seekMargin.Seconds()
	if upper < 0 {
		upper = 0
	}
	if position > upper {
		return upper
	}
	return position
}
