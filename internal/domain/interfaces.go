package domain

import "context"

// Backend is the uniform capability interface over a native media player.
// Implementations own the persistent player window: it is created by Open
// and destroyed by Close.
type Backend interface {
	// Name identifies the backend in logs and on the idle screen
	Name() string

	// Version returns the version of the underlying player
	Version(ctx context.Context) (string, error)

	// ApplyStartupOptions configures the player; must be called before Open
	ApplyStartupOptions(opts StartupOptions) error

	// SetFullscreen toggles fullscreen; must be called before Open
	SetFullscreen(fullscreen bool) error

	// Open creates the player window or process
	Open(ctx context.Context) error

	// Load prepares a media item and returns its handle.
	// Returns ErrLoadFailed if the file is missing, unreadable or rejected.
	Load(ctx context.Context, media Media) (Handle, error)

	// Play, Pause and Resume return ErrInvalidState when the handle
	// is not in a compatible state
	Play(ctx context.Context, h Handle) error
	Pause(ctx context.Context, h Handle) error
	Resume(ctx context.Context, h Handle) error

	// Stop halts playback and releases the handle; its stream is closed
	Stop(ctx context.Context, h Handle) error

	// Seek moves the playback position by offset seconds, clamped to
	// [0, duration). Returns the resulting position.
	Seek(ctx context.Context, h Handle, offset float64) (float64, error)

	// Position returns the current playback position in seconds
	Position(ctx context.Context, h Handle) (float64, error)

	// Subscribe returns the event stream of a handle.
	// The channel is closed when the handle is released.
	Subscribe(h Handle) <-chan BackendEvent

	// Close releases every handle and destroys the player window
	Close(ctx context.Context) error
}

// Renderer produces subtitle overlays for screens
type Renderer interface {
	// RenderScreen writes the subtitle file of a screen and returns its path.
	// It falls back to the packaged template, so it only fails when even
	// the fallback cannot be written.
	RenderScreen(screen Screen, data TemplateContext) (string, error)
}

// Backgrounds provides the resolved background media of each screen
type Backgrounds interface {
	// Background returns the media path of a screen and whether it is a still image
	Background(screen Screen) (path string, still bool)
}

// EntrySource hands queued entries to the state machine
type EntrySource interface {
	// TakeNext pops the entry to play next, or nil when none is queued
	TakeNext() *PlaylistEntry
}

// Channel is the link to the remote controller
type Channel interface {
	// Commands returns the stream of decoded inbound commands
	Commands() <-chan Command

	// Send queues a status event for delivery; it never blocks on the network
	Send(event StatusEvent)

	// RequestEntry tells the server the player is ready for another entry
	RequestEntry()
}

// Inhibitor keeps the screensaver away while a song plays
type Inhibitor interface {
	Inhibit(ctx context.Context) error
	Release(ctx context.Context) error
}
