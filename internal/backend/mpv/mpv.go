// Package mpv drives an out-of-process mpv player over its JSON IPC socket.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/karaplayer/internal/backend"
	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/zap"
)

const (
	name            = "mpv"
	pausePropertyID = 1
	connectTimeout  = 10 * time.Second
	commandTimeout  = 5 * time.Second
	longExitWarning = 3 * time.Second
)

// baseArgs keep mpv a passive, persistent video surface
var baseArgs = []string{
	"--idle=yes",
	"--force-window=immediate",
	"--no-input-default-bindings",
	"--input-vo-keyboard=no",
	"--osc=no",
	"--osd-level=0",
	"--image-display-duration=inf",
	"--keep-open=no",
	"--no-terminal",
}

// Options configure the mpv backend
type Options struct {
	// Binary is the mpv executable
	Binary string
	// RuntimeDir receives the IPC socket
	RuntimeDir string
}

// Backend controls one mpv process
type Backend struct {
	logger     *zap.Logger
	opts       Options
	socketPath string
	tracker    *backend.Tracker

	args        []string
	fileOptions map[string]string
	fullscreen  bool

	// connect starts mpv and returns a connection to its socket;
	// replaced in tests by an in-memory peer
	connect func(ctx context.Context) (net.Conn, error)
	cmd     *exec.Cmd
	ipc     *ipcClient

	mu       sync.Mutex
	opened   bool
	closing  bool
	pending  []domain.Handle         // loadfile issued, start-file not seen yet
	entries  map[int64]domain.Handle // mpv playlist entry id -> handle
	current  domain.Handle
	duration map[domain.Handle]float64
}

// NewBackend creates an mpv backend; the process starts on Open
func NewBackend(logger *zap.Logger, opts Options) *Backend {
	if opts.Binary == "" {
		opts.Binary = "mpv"
	}
	if opts.RuntimeDir == "" {
		opts.RuntimeDir = os.TempDir()
	}
	b := &Backend{
		logger:      logger.With(zap.String("backend", name)),
		opts:        opts,
		socketPath:  defaultSocketPath(opts.RuntimeDir),
		tracker:     backend.NewTracker(),
		fileOptions: make(map[string]string),
		entries:     make(map[int64]domain.Handle),
		duration:    make(map[domain.Handle]float64),
	}
	b.connect = b.launch
	return b
}

// Name identifies the backend
func (b *Backend) Name() string {
	return name
}

// ApplyStartupOptions stores extra command-line arguments for mpv and
// key=value options applied to every loaded file
func (b *Backend) ApplyStartupOptions(opts domain.StartupOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return fmt.Errorf("startup options must be applied before open: %w", domain.ErrInvalidState)
	}

	b.args = append(b.args, opts.Args...)
	for _, opt := range opts.MediaOptions {
		key, value, ok := strings.Cut(strings.TrimLeft(opt, "-"), "=")
		if !ok {
			value = "yes"
		}
		b.fileOptions[key] = value
	}
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

func (b *Backend) commandLine() []string {
	args := append([]string{}, baseArgs...)
	args = append(args, "--input-ipc-server="+b.socketPath)
	if b.fullscreen {
		args = append(args, "--fullscreen")
	}
	return append(args, b.args...)
}

// launch starts the mpv process and connects to its socket
func (b *Backend) launch(ctx context.Context) (net.Conn, error) {
	removeStaleSocket(b.socketPath)

	args := b.commandLine()
	cmd := exec.Command(b.opts.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", b.opts.Binary, err)
	}
	b.cmd = cmd
	b.logger.Info("mpv process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.Strings("args", args))

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	conn, err := dialSocket(dialCtx, b.socketPath)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		b.cmd = nil
		return nil, fmt.Errorf("failed to connect to mpv socket: %w", err)
	}
	return conn, nil
}

// Open starts mpv and subscribes to the pause property
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	if b.opened {
		b.mu.Unlock()
		return nil
	}
	b.opened = true
	b.mu.Unlock()

	conn, err := b.connect(ctx)
	if err != nil {
		b.mu.Lock()
		b.opened = false
		b.mu.Unlock()
		return err
	}
	b.ipc = newIPCClient(b.logger, conn, b.handleEvent, b.handleDisconnect)

	if _, err := b.command(ctx, "observe_property", pausePropertyID, "pause"); err != nil {
		return fmt.Errorf("failed to observe pause: %w", err)
	}

	if version, err := b.Version(ctx); err == nil {
		b.logger.Info("mpv ready", zap.String("version", version))
	}
	return nil
}

func (b *Backend) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if b.ipc == nil {
		return nil, fmt.Errorf("mpv is not open: %w", domain.ErrInvalidState)
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return b.ipc.Command(ctx, args)
}

func (b *Backend) getFloat(ctx context.Context, property string) (float64, error) {
	data, err := b.command(ctx, "get_property", property)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", property, err)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("unexpected %s value %s: %w", property, data, err)
	}
	return v, nil
}

// Version returns the mpv version string
func (b *Backend) Version(ctx context.Context) (string, error) {
	data, err := b.command(ctx, "get_property", "mpv-version")
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	return strings.TrimPrefix(v, "mpv "), nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, domain.ErrLoadFailed)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a file: %w", path, domain.ErrLoadFailed)
	}
	return nil
}

// Load validates the media files and registers a handle.
// mpv only opens the file on Play, so a loaded handle never shows up on screen.
func (b *Backend) Load(ctx context.Context, media domain.Media) (domain.Handle, error) {
	for _, path := range []string{media.Path, media.SubtitlePath, media.AudioPath} {
		if path == "" {
			continue
		}
		if err := checkFile(path); err != nil {
			return "", err
		}
	}

	h := b.tracker.Register(media)
	b.logger.Debug("Media loaded",
		zap.String("handle", string(h)),
		zap.String("path", media.Path))
	return h, nil
}

// Play replaces whatever mpv shows with the handle's media
func (b *Backend) Play(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StateLoaded); err != nil {
		return err
	}
	media, err := b.tracker.Media(h)
	if err != nil {
		return err
	}

	// a previous pause would carry over to the new file
	if _, err := b.command(ctx, "set_property", "pause", false); err != nil {
		return fmt.Errorf("failed to unpause: %w", err)
	}

	options := make(map[string]string, len(b.fileOptions)+2)
	for k, v := range b.fileOptions {
		options[k] = v
	}
	if media.SubtitlePath != "" {
		options["sub-files"] = media.SubtitlePath
	}
	if media.AudioPath != "" {
		options["audio-files"] = media.AudioPath
		options["aid"] = "auto"
	}

	b.mu.Lock()
	b.pending = append(b.pending, h)
	b.mu.Unlock()

	loadCmd := map[string]any{
		"name":    "loadfile",
		"url":     media.Path,
		"flags":   "replace",
		"options": options,
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	data, err := b.ipc.Command(ctx, loadCmd)
	if err != nil {
		b.dropPending(h)
		return fmt.Errorf("mpv rejected %s: %v: %w", media.Path, err, domain.ErrLoadFailed)
	}

	// mpv 0.38+ tells which playlist entry was created
	var loaded struct {
		PlaylistEntryID *int64 `json:"playlist_entry_id"`
	}
	if len(data) > 0 && json.Unmarshal(data, &loaded) == nil && loaded.PlaylistEntryID != nil {
		b.mu.Lock()
		for i, p := range b.pending {
			if p == h {
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				b.entries[*loaded.PlaylistEntryID] = h
				break
			}
		}
		b.mu.Unlock()
	}

	b.tracker.Set(h, backend.StatePlaying)
	return nil
}

func (b *Backend) dropPending(h domain.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.pending {
		if p == h {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return
		}
	}
}

// Pause requests a pause; MediaPaused confirms it
func (b *Backend) Pause(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StatePlaying); err != nil {
		return err
	}
	_, err := b.command(ctx, "set_property", "pause", true)
	return err
}

// Resume requests a resume; MediaResumed confirms it
func (b *Backend) Resume(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StatePaused); err != nil {
		return err
	}
	_, err := b.command(ctx, "set_property", "pause", false)
	return err
}

// Stop halts the handle's media and releases the handle
func (b *Backend) Stop(ctx context.Context, h domain.Handle) error {
	if err := b.tracker.Check(h, backend.StateLoaded, backend.StatePlaying, backend.StatePaused); err != nil {
		return err
	}

	b.mu.Lock()
	onScreen := b.current == h
	if onScreen {
		b.current = ""
	}
	// keep the slot so the coming start-file still lines up with its loadfile
	for i, p := range b.pending {
		if p == h {
			b.pending[i] = ""
			onScreen = true
		}
	}
	for id, owner := range b.entries {
		if owner == h {
			delete(b.entries, id)
			onScreen = true
		}
	}
	delete(b.duration, h)
	b.mu.Unlock()

	b.tracker.Release(h)

	if onScreen {
		if _, err := b.command(ctx, "stop"); err != nil {
			return fmt.Errorf("failed to stop mpv: %w", err)
		}
	}
	return nil
}

// Seek moves the position by offset seconds, clamped to the media duration
func (b *Backend) Seek(ctx context.Context, h domain.Handle, offset float64) (float64, error) {
	if err := b.tracker.Check(h, backend.StatePlaying, backend.StatePaused); err != nil {
		return 0, err
	}
	position, err := b.getFloat(ctx, "time-pos")
	if err != nil {
		return 0, err
	}
	duration, err := b.mediaDuration(ctx, h)
	if err != nil {
		return 0, err
	}

	target := domain.ClampPosition(position+offset, duration)
	if _, err := b.command(ctx, "set_property", "time-pos", target); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}
	return target, nil
}

func (b *Backend) mediaDuration(ctx context.Context, h domain.Handle) (float64, error) {
	b.mu.Lock()
	d, ok := b.duration[h]
	b.mu.Unlock()
	if ok {
		return d, nil
	}
	d, err := b.getFloat(ctx, "duration")
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.duration[h] = d
	b.mu.Unlock()
	return d, nil
}

// Position returns the playback position in seconds
func (b *Backend) Position(ctx context.Context, h domain.Handle) (float64, error) {
	if err := b.tracker.Check(h, backend.StatePlaying, backend.StatePaused); err != nil {
		return 0, err
	}
	return b.getFloat(ctx, "time-pos")
}

// Subscribe returns the event stream of a handle
func (b *Backend) Subscribe(h domain.Handle) <-chan domain.BackendEvent {
	return b.tracker.Subscribe(h)
}

// handleEvent runs on the IPC reader goroutine
func (b *Backend) handleEvent(msg message) {
	switch msg.Event {
	case "start-file":
		b.mu.Lock()
		if h, ok := b.entries[msg.PlaylistEntryID]; ok {
			b.current = h
		} else if len(b.pending) > 0 {
			h := b.pending[0]
			b.pending = b.pending[1:]
			if h != "" {
				b.entries[msg.PlaylistEntryID] = h
			}
			b.current = h
		} else {
			b.current = ""
		}
		b.mu.Unlock()

	case "file-loaded":
		b.mu.Lock()
		h := b.current
		b.mu.Unlock()
		if h != "" {
			b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaStarted, Handle: h})
		}

	case "end-file":
		b.mu.Lock()
		h, ok := b.entries[msg.PlaylistEntryID]
		delete(b.entries, msg.PlaylistEntryID)
		if ok && b.current == h {
			b.current = ""
		}
		b.mu.Unlock()
		if !ok {
			return
		}

		switch msg.Reason {
		case "eof":
			b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaEndReached, Handle: h})
		case "error":
			detail := msg.FileError
			if detail == "" {
				detail = "playback error"
			}
			b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaError, Handle: h, Detail: detail})
		}

	case "property-change":
		if msg.Name != "pause" {
			return
		}
		var paused bool
		if err := json.Unmarshal(msg.Data, &paused); err != nil {
			return
		}
		b.mu.Lock()
		h := b.current
		b.mu.Unlock()
		if h == "" {
			return
		}

		state, err := b.tracker.State(h)
		if err != nil {
			return
		}
		switch {
		case paused && state == backend.StatePlaying:
			b.tracker.Set(h, backend.StatePaused)
			b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaPaused, Handle: h})
		case !paused && state == backend.StatePaused:
			b.tracker.Set(h, backend.StatePlaying)
			b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaResumed, Handle: h})
		}
	}
}

// handleDisconnect reports a dead player on every live handle
func (b *Backend) handleDisconnect(err error) {
	b.mu.Lock()
	closing := b.closing
	b.mu.Unlock()
	if closing {
		return
	}

	b.logger.Error("Lost connection to mpv", zap.Error(err))
	for _, h := range b.tracker.Handles() {
		b.tracker.Emit(domain.BackendEvent{Kind: domain.MediaError, Handle: h, Detail: "mpv exited"})
	}
}

// Close quits mpv and releases every handle
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.opened || b.closing {
		b.mu.Unlock()
		return nil
	}
	b.closing = true
	b.mu.Unlock()

	b.tracker.ReleaseAll()

	if b.ipc != nil {
		quitCtx, cancel := context.WithTimeout(ctx, time.Second)
		if _, err := b.ipc.Command(quitCtx, []any{"quit"}); err != nil && !errors.Is(err, errClosed) {
			b.logger.Debug("quit command failed", zap.Error(err))
		}
		cancel()
		if err := b.ipc.Close(); err != nil {
			b.logger.Debug("Failed to close mpv socket", zap.Error(err))
		}
	}

	if b.cmd != nil {
		return b.waitProcess(ctx)
	}
	return nil
}

func (b *Backend) waitProcess(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- b.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(longExitWarning):
		b.logger.Warn("mpv takes unusually long to exit")
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = b.cmd.Process.Kill()
		<-done
		return fmt.Errorf("mpv killed after shutdown timeout: %w", ctx.Err())
	}
}
