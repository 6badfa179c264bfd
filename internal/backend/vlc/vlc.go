//go:build vlc
// +build vlc

// Package vlc drives libVLC in-process through its Go binding.
package vlc

import (
	"context"
	"fmt"
	"os"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/genricoloni/karaplayer/internal/backend"
	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/zap"
)

const name = "vlc"

// Backend owns the libVLC instance and its single player window
type Backend struct {
	logger  *zap.Logger
	tracker *backend.Tracker

	// mu serialises libVLC calls made from the state machine
	mu           sync.Mutex
	args         []string
	mediaOptions []string
	fullscreen   bool
	opened       bool
	player       *vlc.Player
	events       *vlc.EventManager
	eventIDs     []vlc.EventID
	media        map[domain.Handle]*vlc.Media

	// cbMu guards what the callbacks read; callbacks run on libVLC
	// threads and must never call back into libVLC
	cbMu    sync.Mutex
	current domain.Handle
	started bool
}

// NewBackend creates a libVLC backend; the instance starts on Open
func NewBackend(logger *zap.Logger) *Backend {
	return &Backend{
		logger:  logger.With(zap.String("backend", name)),
		tracker: backend.NewTracker(),
		media:   make(map[domain.Handle]*vlc.Media),
	}
}

// Name identifies the backend
func (b *Backend) Name() string {
	return name
}

// Version returns the libVLC version
func (b *Backend) Version(ctx context.Context) (string, error) {
	return vlc.Version().String(), nil
}

// ApplyStartupOptions keeps instance parameters and per-media options
func (b *Backend) ApplyStartupOptions(opts domain.StartupOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return fmt.Errorf("startup options must be applied before open: %w", domain.ErrInvalidState)
	}
	b.args = append(b.args, opts.Args...)
	b.mediaOptions = append(b.mediaOptions, opts.MediaOptions...)
	return nil
}

// SetFullscreen selects fullscreen mode for the window
func (b *Backend) SetFullscreen(fullscreen bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return fmt.Errorf("fullscreen must be set before open: %w", domain.ErrInvalidState)
	}
	b.fullscreen = fullscreen
	return nil
}

// Open initialises libVLC and creates the persistent player
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil
	}

	args := append([]string{"--no-video-title-show", "--quiet"}, b.args...)
	if err := vlc.Init(args...); err != nil {
		return fmt.Errorf("failed to initialise libvlc: %w", err)
	}

	player, err := vlc.NewPlayer()
	if err != nil {
		_ = vlc.Release()
		return fmt.Errorf("failed to create player: %w", err)
	}
	if b.fullscreen {
		if err := player.SetFullScreen(true); err != nil {
			b.logger.Warn("Failed to enable fullscreen", zap.Error(err))
		}
	}

	manager, err := player.EventManager()
	if err != nil {
		_ = player.Release()
		_ = vlc.Release()
		return fmt.Errorf("failed to get event manager: %w", err)
	}

	for ev := range playerEvents {
		id, err := manager.Attach(ev, b.onEvent, nil)
		if err != nil {
			manager.Detach(b.eventIDs...)
			_ = player.Release()
			_ = vlc.Release()
			return fmt.Errorf("failed to attach event %v: %w", ev, err)
		}
		b.eventIDs = append(b.eventIDs, id)
	}

	b.player = player
	b.events = manager
	b.opened = true
	b.logger.Info("libvlc ready", zap.String("version", vlc.Version().String()))
	return nil
}

var playerEvents = map[vlc.Event]playerEvent{
	vlc.MediaPlayerPlaying:          eventPlaying,
	vlc.MediaPlayerPaused:           eventPaused,
	vlc.MediaPlayerEndReached:       eventEndReached,
	vlc.MediaPlayerEncounteredError: eventError,
}

// onEvent runs on a libVLC thread
func (b *Backend) onEvent(event vlc.Event, _ interface{}) {
	pe, ok := playerEvents[event]
	if !ok {
		return
	}

	b.cbMu.Lock()
	h := b.current
	started := b.started
	if pe == eventPlaying {
		b.started = true
	}
	b.cbMu.Unlock()
	if h == "" {
		return
	}

	state, err := b.tracker.State(h)
	if err != nil {
		// released while the event was in flight
		return
	}
	ev, next, ok := translate(pe, started, state)
	if !ok {
		return
	}
	if next != state {
		b.tracker.Set(h, next)
	}
	ev.Handle = h
	b.tracker.Emit(ev)
}

// Load creates a libVLC media with its subtitle and instrumental slaves
func (b *Backend) Load(ctx context.Context, media domain.Media) (domain.Handle, error) {
	for _, path := range []string{media.Path, media.SubtitlePath, media.AudioPath} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			return "", fmt.Errorf("%s is not readable: %w", path, domain.ErrLoadFailed)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opened {
		return "", fmt.Errorf("libvlc is not open: %w", domain.ErrInvalidState)
	}

	m, err := vlc.NewMediaFromPath(media.Path)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", media.Path, err, domain.ErrLoadFailed)
	}

	options := append([]string{":no-sub-autodetect-file"}, b.mediaOptions...)
	if media.SubtitlePath != "" {
		options = append(options, ":sub-file="+media.SubtitlePath)
	}
	if media.AudioPath != "" {
		options = append(options, ":input-slave="+media.AudioPath, ":audio-track=1")
	}
	if media.Still {
		options = append(options, ":image-duration=-1")
	}
	if err := m.AddOptions(options...); err != nil {
		_ = m.Release()
		return "", fmt.Errorf("failed to set media options: %v: %w", err, domain.ErrLoadFailed)
	}

	h := b.tracker.Register(media)
	b.media[h] = m
	return h, nil
}

// Play shows the handle's media in the player window
func (b *Backend) Play(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StateLoaded); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.media[h]
	if !ok {
		return fmt.Errorf("no media for %s: %w", h, domain.ErrInvalidState)
	}

	b.cbMu.Lock()
	b.current = h
	b.started = false
	b.cbMu.Unlock()

	if err := b.player.SetMedia(m); err != nil {
		return fmt.Errorf("failed to set media: %v: %w", err, domain.ErrLoadFailed)
	}
	b.tracker.Set(h, backend.StatePlaying)
	if err := b.player.Play(); err != nil {
		b.tracker.Set(h, backend.StateLoaded)
		return fmt.Errorf("failed to play: %v: %w", err, domain.ErrLoadFailed)
	}
	return nil
}

// Pause requests a pause; MediaPaused confirms it
func (b *Backend) Pause(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StatePlaying); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.player.SetPause(true)
}

// Resume requests a resume; MediaResumed confirms it
func (b *Backend) Resume(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StatePaused); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.player.SetPause(false)
}

// Stop halts the media and releases the handle
func (b *Backend) Stop(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StateLoaded, backend.StatePlaying, backend.StatePaused); err != nil {
		return err
	}

	b.cbMu.Lock()
	onScreen := b.current == h
	if onScreen {
		b.current = ""
	}
	b.cbMu.Unlock()
	b.tracker.Release(h)

	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if onScreen {
		err = b.player.Stop()
	}
	if m, ok := b.media[h]; ok {
		delete(b.media, h)
		if rerr := m.Release(); rerr != nil {
			b.logger.Debug("Failed to release media", zap.Error(rerr))
		}
	}
	return err
}

// Seek moves the position by offset seconds, clamped to the media length
func (b *Backend) Seek(ctx context.Context, h domain.Handle, offset float64) (float64, error) {
	if err := b.tracker.Check(h, backend.StatePlaying, backend.StatePaused); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	posMs, err := b.player.MediaTime()
	if err != nil {
		return 0, fmt.Errorf("failed to get position: %w", err)
	}
	lengthMs, err := b.player.MediaLength()
	if err != nil {
		return 0, fmt.Errorf("failed to get length: %w", err)
	}

	target := domain.ClampPosition(float64(posMs)/1000+offset, float64(lengthMs)/1000)
	if err := b.player.SetMediaTime(int(target * 1000)); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}
	return target, nil
}

// Position returns the playback position in seconds
func (b *Backend) Position(ctx context.Context, h domain.Handle) (float64, error) {
	if err := b.tracker.Check(h, backend.StatePlaying, backend.StatePaused); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ms, err := b.player.MediaTime()
	if err != nil {
		return 0, err
	}
	return float64(ms) / 1000, nil
}

// Subscribe returns the event stream of a handle
func (b *Backend) Subscribe(h domain.Handle) <-chan domain.BackendEvent {
	return b.tracker.Subscribe(h)
}

// Close stops playback, releases every media and tears libVLC down
func (b *Backend) Close(ctx context.Context) error {
	b.cbMu.Lock()
	b.current = ""
	b.cbMu.Unlock()
	b.tracker.ReleaseAll()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opened {
		return nil
	}
	b.opened = false

	b.events.Detach(b.eventIDs...)
	b.eventIDs = nil
	_ = b.player.Stop()
	for h, m := range b.media {
		_ = m.Release()
		delete(b.media, h)
	}
	if err := b.player.Release(); err != nil {
		b.logger.Warn("Failed to release player", zap.Error(err))
	}
	return vlc.Release()
}
