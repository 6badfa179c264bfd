package main

import (
	"context"
	"testing"

	"github.com/genricoloni/karaplayer/internal/backend"
	"github.com/genricoloni/karaplayer/internal/config"
	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TestAppGraphValidity verifies that the dependency graph is resolvable.
// This test will fail if you forget an fx.Provide for a required interface.
func TestAppGraphValidity(t *testing.T) {
	// fx.ValidateApp checks that there are no missing or cyclic dependencies
	err := fx.ValidateApp(AppOptions)

	if err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}
}

// TestNewLogger specifically verifies the logger configuration
func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.Config{})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	// We can verify it's a real logger by writing something (should not panic)
	logger.Info("Test logger initialization")
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    string
		wantErr bool
	}{
		{name: "mpv", backend: "mpv", want: "mpv"},
		{name: "vlc", backend: "vlc", want: "vlc"},
		{name: "unknown", backend: "xine", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Player.Backend = tt.backend
			cfg.Player.RuntimeDir = t.TempDir()
			cfg.Player.Mpv.Options = map[string]string{"volume": "80"}

			b, err := newBackend(zap.NewNop(), cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newBackend failed: %v", err)
			}
			if b.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.want)
			}
		})
	}
}

// quietBackend shows every media instantly and never ends it
type quietBackend struct {
	tracker *backend.Tracker
}

func (q *quietBackend) Name() string                                    { return "quiet" }
func (q *quietBackend) Version(context.Context) (string, error)         { return "0", nil }
func (q *quietBackend) ApplyStartupOptions(domain.StartupOptions) error { return nil }
func (q *quietBackend) SetFullscreen(bool) error                        { return nil }
func (q *quietBackend) Open(context.Context) error                      { return nil }

func (q *quietBackend) Load(_ context.Context, m domain.Media) (domain.Handle, error) {
	return q.tracker.Register(m), nil
}

func (q *quietBackend) Play(_ context.Context, h domain.Handle) error {
	if err := q.tracker.Check(h, backend.StateLoaded); err != nil {
		return err
	}
	q.tracker.Set(h, backend.StatePlaying)
	q.tracker.Emit(domain.BackendEvent{Kind: domain.MediaStarted, Handle: h})
	return nil
}

func (q *quietBackend) Pause(context.Context, domain.Handle) error  { return domain.ErrInvalidState }
func (q *quietBackend) Resume(context.Context, domain.Handle) error { return domain.ErrInvalidState }

func (q *quietBackend) Stop(_ context.Context, h domain.Handle) error {
	q.tracker.Release(h)
	return nil
}

func (q *quietBackend) Seek(context.Context, domain.Handle, float64) (float64, error) {
	return 0, domain.ErrInvalidState
}

func (q *quietBackend) Position(context.Context, domain.Handle) (float64, error) { return 0, nil }

func (q *quietBackend) Subscribe(h domain.Handle) <-chan domain.BackendEvent {
	return q.tracker.Subscribe(h)
}

func (q *quietBackend) Close(context.Context) error {
	q.tracker.ReleaseAll()
	return nil
}

// TestEndToEndStartup tries a real startup/stop in a controlled environment.
// The player window is swapped for a quiet backend and the server is unreachable.
func TestEndToEndStartup(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("KARAPLAYER_CONFIG", "")
	t.Setenv("KARAPLAYER_PLAYER_RUNTIME_DIR", dir)
	t.Setenv("KARAPLAYER_PLAYER_FIT_BACKGROUNDS", "false")
	t.Setenv("KARAPLAYER_SERVER_ADDRESS", "http://127.0.0.1:1")
	t.Setenv("KARAPLAYER_LOG_LEVEL", "error")

	app := fx.New(
		AppOptions,
		fx.Decorate(func(domain.Backend) domain.Backend {
			return &quietBackend{tracker: backend.NewTracker()}
		}),
		fx.NopLogger, // Silence Fx logs during tests
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Verify that the app can start without errors
	if err := app.Start(ctx); err != nil {
		t.Fatalf("App failed to start: %v", err)
	}

	// Verify that the app can stop without errors
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("App failed to stop: %v", err)
	}
}
