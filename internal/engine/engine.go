package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/intake"
	"github.com/genricoloni/karaplayer/internal/media"
	"go.uber.org/zap"
)

const (
	defaultTransitionDuration = 2 * time.Second
	defaultSeekStep           = 10.0
	defaultEndGrace           = 250 * time.Millisecond
	shutdownTimeout           = 5 * time.Second
)

// State of the playback state machine
type State int32

const (
	StateIdle State = iota
	StateTransition
	StateSong
	StatePaused
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransition:
		return "transition"
	case StateSong:
		return "song"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Options tune the state machine
type Options struct {
	// KaraFolder is prepended to song file paths
	KaraFolder string
	// TransitionDuration applies to still transition backgrounds
	TransitionDuration time.Duration
	// SeekStep is the rewind/fast-forward step in seconds
	SeekStep float64
	// Notes are shown on the idle screen after the backend version
	Notes []string
	// EndGrace is how long a finished song waits before the next entry
	// starts. A Stop received meanwhile goes straight to idle.
	EndGrace time.Duration
}

type inputKind int

const (
	inputCommand inputKind = iota
	inputBackend
	inputTimer
)

type input struct {
	kind    inputKind
	command domain.Command
	event   domain.BackendEvent
	session uint64
}

// Engine is the playback state machine. It runs as a single actor: commands,
// backend events and timers are pushed on one intake queue and applied one
// at a time, so backend calls are never concurrent.
type Engine struct {
	logger      *zap.Logger
	backend     domain.Backend
	renderer    domain.Renderer
	backgrounds domain.Backgrounds
	entries     domain.EntrySource
	opts        Options

	in  *intake.Queue[input]
	out *intake.Queue[domain.Lifecycle]

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup // backend event forwarders
	status atomic.Int32

	// owned by the actor goroutine
	ctx     context.Context
	state   State
	session uint64
	handle  domain.Handle
	entry   *domain.PlaylistEntry
	timer   *time.Timer
	notes   []string
}

// NewEngine creates a state machine bound to one backend
func NewEngine(
	logger *zap.Logger,
	backend domain.Backend,
	renderer domain.Renderer,
	backgrounds domain.Backgrounds,
	entries domain.EntrySource,
	opts Options,
) *Engine {
	if opts.TransitionDuration <= 0 {
		opts.TransitionDuration = defaultTransitionDuration
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = defaultSeekStep
	}
	if opts.EndGrace <= 0 {
		opts.EndGrace = defaultEndGrace
	}
	return &Engine{
		logger:      logger,
		backend:     backend,
		renderer:    renderer,
		backgrounds: backgrounds,
		entries:     entries,
		opts:        opts,
		in:          intake.New[input](),
		out:         intake.New[domain.Lifecycle](),
		done:        make(chan struct{}),
	}
}

// Lifecycle returns committed transitions in commit order
func (e *Engine) Lifecycle() <-chan domain.Lifecycle {
	return e.out.Out()
}

// State returns the last committed state
func (e *Engine) State() State {
	return State(e.status.Load())
}

// Submit queues a command; it never blocks
func (e *Engine) Submit(cmd domain.Command) {
	e.in.Push(input{kind: inputCommand, command: cmd})
}

// Start shows the idle screen and launches the actor loop.
// It returns immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...")

	e.notes = e.idleNotes(ctx)

	loopCtx, cancel := context.WithCancel(context.Background())
	e.ctx = loopCtx
	e.cancel = cancel

	go e.run()
	return nil
}

func (e *Engine) idleNotes(ctx context.Context) []string {
	notes := []string{e.backend.Name()}
	if version, err := e.backend.Version(ctx); err == nil && version != "" {
		notes[0] = fmt.Sprintf("%s %s", e.backend.Name(), version)
	} else if err != nil {
		e.logger.Debug("Backend version unavailable", zap.Error(err))
	}
	return append(notes, e.opts.Notes...)
}

func (e *Engine) run() {
	defer close(e.done)

	e.enterIdle(true)

	for {
		select {
		case <-e.ctx.Done():
			e.shutdown()
			e.logger.Info("Engine loop stopped")
			return
		case in, ok := <-e.in.Out():
			if !ok {
				return
			}
			e.apply(in)
		}
	}
}

// Stop tears the session down and waits for every goroutine it started
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	select {
	case <-e.done:
	case <-ctx.Done():
		return fmt.Errorf("engine did not stop: %w", ctx.Err())
	}

	e.wg.Wait()
	e.in.Close()
	e.out.Close()
	return nil
}

func (e *Engine) apply(in input) {
	switch in.kind {
	case inputCommand:
		e.handleCommand(in.command)
	case inputTimer:
		if in.session != e.session {
			return
		}
		switch e.state {
		case StateTransition:
			e.startSong()
		case StateStopping:
			e.advance()
		}
	case inputBackend:
		if in.session != e.session || in.event.Handle != e.handle {
			e.logger.Debug("Dropping stale backend event",
				zap.Stringer("event", in.event.Kind),
				zap.String("handle", string(in.event.Handle)))
			return
		}
		e.handleBackendEvent(in.event)
	}
}

func (e *Engine) setState(s State) {
	if e.state != s {
		e.logger.Debug("State change",
			zap.Stringer("from", e.state),
			zap.Stringer("to", s))
	}
	e.state = s
	e.status.Store(int32(s))
}

func (e *Engine) emit(kind domain.LifecycleKind, entry *domain.PlaylistEntry, position float64, message string) {
	e.out.Push(domain.Lifecycle{Kind: kind, Entry: entry, Position: position, Message: message})
}

func (e *Engine) handleCommand(cmd domain.Command) {
	e.logger.Debug("Command received",
		zap.String("command", string(cmd.Kind)),
		zap.Stringer("state", e.state))

	switch cmd.Kind {
	case domain.CommandPlay:
		if e.state == StateIdle {
			e.advance()
		}

	case domain.CommandPause:
		if e.state != StateSong {
			return
		}
		if err := e.backend.Pause(e.ctx, e.handle); err != nil {
			e.logger.Warn("Pause failed", zap.Error(err))
		}

	case domain.CommandResume:
		if e.state != StatePaused {
			return
		}
		if err := e.backend.Resume(e.ctx, e.handle); err != nil {
			e.logger.Warn("Resume failed", zap.Error(err))
		}

	case domain.CommandStop, domain.CommandSkip:
		if e.state == StateIdle {
			return
		}
		// entry is set during the transition too: every transition_started
		// is closed by a finished
		entry := e.entry
		e.setState(StateStopping)
		e.teardown()
		if entry != nil {
			e.emit(domain.LifecycleFinished, entry, 0, "")
		}
		if cmd.Kind == domain.CommandSkip {
			e.advance()
		} else {
			e.enterIdle(true)
		}

	case domain.CommandIdle:
		if e.state == StateIdle {
			return
		}
		e.setState(StateStopping)
		e.enterIdle(true)

	case domain.CommandRestart:
		e.seek(func(position float64) float64 { return -position })

	case domain.CommandRewind:
		step := e.step(cmd)
		e.seek(func(float64) float64 { return -step })

	case domain.CommandFastForward:
		step := e.step(cmd)
		e.seek(func(float64) float64 { return step })
	}
}

func (e *Engine) step(cmd domain.Command) float64 {
	if cmd.Seconds > 0 {
		return cmd.Seconds
	}
	return e.opts.SeekStep
}

// seek applies an offset computed from the current position. Only songs
// can be seeked; other states ignore the command.
func (e *Engine) seek(offset func(position float64) float64) {
	if e.state != StateSong && e.state != StatePaused {
		return
	}
	position, err := e.backend.Position(e.ctx, e.handle)
	if err != nil {
		e.logger.Warn("Cannot read position", zap.Error(err))
		return
	}
	target, err := e.backend.Seek(e.ctx, e.handle, offset(position))
	if err != nil {
		e.logger.Warn("Seek failed", zap.Error(err))
		return
	}
	e.emit(domain.LifecycleUpdatedTiming, e.entry, target, "")
}

func (e *Engine) handleBackendEvent(ev domain.BackendEvent) {
	switch ev.Kind {
	case domain.MediaStarted:
		e.logger.Debug("Media started", zap.Stringer("state", e.state))

	case domain.MediaPaused:
		if e.state != StateSong {
			return
		}
		e.setState(StatePaused)
		e.emit(domain.LifecyclePaused, e.entry, e.position(), "")

	case domain.MediaResumed:
		if e.state != StatePaused {
			return
		}
		e.setState(StateSong)
		e.emit(domain.LifecycleResumed, e.entry, e.position(), "")

	case domain.MediaEndReached:
		switch e.state {
		case StateTransition:
			e.startSong()
		case StateSong, StatePaused:
			entry := e.entry
			e.teardown()
			e.setState(StateStopping)
			e.emit(domain.LifecycleFinished, entry, 0, "")
			e.settle()
		case StateIdle:
			// video idle backgrounds loop
			e.showIdle()
		}

	case domain.MediaError:
		e.logger.Error("Backend error",
			zap.Stringer("state", e.state),
			zap.String("detail", ev.Detail))

		switch e.state {
		case StateTransition:
			entry := e.entry
			e.teardown()
			e.emit(domain.LifecycleError, entry, 0, ev.Detail)
			e.emit(domain.LifecycleCouldNotPlay, entry, 0, "")
			e.advance()
		case StateSong, StatePaused:
			entry := e.entry
			e.teardown()
			e.setState(StateStopping)
			e.emit(domain.LifecycleError, entry, 0, ev.Detail)
			e.emit(domain.LifecycleFinished, entry, 0, "")
			e.settle()
		}
	}
}

func (e *Engine) position() float64 {
	position, err := e.backend.Position(e.ctx, e.handle)
	if err != nil {
		e.logger.Debug("Cannot read position", zap.Error(err))
		return 0
	}
	return position
}

// teardown ends the current session: timer cancelled, handle released
func (e *Engine) teardown() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.handle != "" {
		if err := e.backend.Stop(e.ctx, e.handle); err != nil {
			e.logger.Debug("Failed to stop handle", zap.Error(err))
		}
		e.handle = ""
	}
	e.session++
	e.entry = nil
}

// play loads media into a fresh handle owned by a new session
func (e *Engine) play(m domain.Media) error {
	h, err := e.backend.Load(e.ctx, m)
	if err != nil {
		return err
	}

	e.session++
	e.handle = h
	e.wg.Add(1)
	go e.forward(e.session, e.backend.Subscribe(h))

	if err := e.backend.Play(e.ctx, h); err != nil {
		if serr := e.backend.Stop(e.ctx, h); serr != nil {
			e.logger.Debug("Failed to release handle", zap.Error(serr))
		}
		e.handle = ""
		e.session++
		return err
	}
	return nil
}

func (e *Engine) forward(session uint64, events <-chan domain.BackendEvent) {
	defer e.wg.Done()
	for ev := range events {
		e.in.Push(input{kind: inputBackend, event: ev, session: session})
	}
}

func (e *Engine) arm(d time.Duration) {
	session := e.session
	e.timer = time.AfterFunc(d, func() {
		e.in.Push(input{kind: inputTimer, session: session})
	})
}

// settle advances after EndGrace; a Stop racing with the end of the song
// cancels the timer and wins
func (e *Engine) settle() {
	e.arm(e.opts.EndGrace)
}

// advance starts the next queued entry, or the idle screen
func (e *Engine) advance() {
	for {
		next := e.entries.TakeNext()
		if next == nil {
			e.enterIdle(true)
			return
		}
		if e.startTransition(next) {
			return
		}
	}
}

func (e *Engine) songPath(entry *domain.PlaylistEntry) string {
	if filepath.IsAbs(entry.Song.FilePath) || e.opts.KaraFolder == "" {
		return entry.Song.FilePath
	}
	return filepath.Join(e.opts.KaraFolder, entry.Song.FilePath)
}

func (e *Engine) reject(entry *domain.PlaylistEntry, message string) {
	e.emit(domain.LifecycleError, entry, 0, message)
	e.emit(domain.LifecycleCouldNotPlay, entry, 0, "")
}

// startTransition shows the transition screen of an entry. It reports false
// when the entry cannot be played, after emitting the failure.
func (e *Engine) startTransition(entry *domain.PlaylistEntry) bool {
	e.teardown()

	log := e.logger.With(zap.Int("entry", entry.ID), zap.String("title", entry.Song.Title))
	if !media.Exists(e.songPath(entry)) {
		log.Error("Song file not found", zap.String("path", e.songPath(entry)))
		e.reject(entry, "File not found")
		return false
	}

	subtitle, err := e.renderer.RenderScreen(domain.ScreenTransition, domain.TemplateContext{Entry: entry, FadeIn: true})
	if err != nil {
		log.Error("No transition text", zap.Error(err))
		subtitle = ""
	}
	background, still := e.backgrounds.Background(domain.ScreenTransition)

	if err := e.play(domain.Media{Path: background, SubtitlePath: subtitle, Still: still}); err != nil {
		log.Error("Cannot play transition screen", zap.Error(err))
		e.reject(entry, err.Error())
		return false
	}

	e.entry = entry
	e.setState(StateTransition)
	if still {
		e.arm(e.opts.TransitionDuration)
	}
	log.Info("Transition started")
	e.emit(domain.LifecycleTransitionStarted, entry, 0, "")
	return true
}

// startSong replaces the transition screen with the song itself
func (e *Engine) startSong() {
	entry := e.entry
	e.teardown()

	path := e.songPath(entry)
	log := e.logger.With(zap.Int("entry", entry.ID), zap.String("path", path))

	m := domain.Media{Path: path, SubtitlePath: media.SubtitleFile(path)}
	if entry.UseInstrumental {
		if audio := media.InstrumentalFile(path); audio != "" {
			m.AudioPath = audio
			log.Info("Playing instrumental track", zap.String("audio", audio))
		} else {
			log.Warn("No instrumental track found, playing the main file")
		}
	}

	if err := e.play(m); err != nil {
		log.Error("Cannot play song", zap.Error(err))
		e.reject(entry, err.Error())
		e.advance()
		return
	}

	e.entry = entry
	e.setState(StateSong)
	log.Info("Song started")
	e.emit(domain.LifecycleStarted, entry, 0, "")
}

// enterIdle shows the idle screen; emit is false for loop replays
func (e *Engine) enterIdle(emit bool) {
	e.teardown()
	e.setState(StateIdle)
	e.showIdle()
	if emit {
		e.emit(domain.LifecycleIdle, nil, 0, "")
	}
}

func (e *Engine) showIdle() {
	if e.handle != "" {
		e.teardown()
	}

	subtitle, err := e.renderer.RenderScreen(domain.ScreenIdle, domain.TemplateContext{Notes: e.notes})
	if err != nil {
		e.logger.Error("No idle text", zap.Error(err))
		subtitle = ""
	}
	background, still := e.backgrounds.Background(domain.ScreenIdle)

	if err := e.play(domain.Media{Path: background, SubtitlePath: subtitle, Still: still}); err != nil {
		e.logger.Error("Cannot play idle screen", zap.Error(err))
	}
}

func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	e.ctx = ctx
	e.teardown()
	e.setState(StateIdle)
}
