//go:build !vlc
// +build !vlc

// Package vlc drives libVLC in-process through its Go binding.
// This build was made without the vlc tag: every operation fails.
package vlc

import (
	"context"
	"errors"

	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/zap"
)

var errNotCompiled = errors.New("libvlc support not compiled in (build with -tags vlc)")

// Backend stub for builds without libVLC
type Backend struct {
	logger *zap.Logger
}

// NewBackend creates a stub that refuses to open
func NewBackend(logger *zap.Logger) *Backend {
	return &Backend{logger: logger}
}

func (b *Backend) Name() string { return "vlc" }

func (b *Backend) Version(ctx context.Context) (string, error) { return "", errNotCompiled }

func (b *Backend) ApplyStartupOptions(opts domain.StartupOptions) error { return nil }

func (b *Backend) SetFullscreen(fullscreen bool) error { return nil }

// Open always fails
func (b *Backend) Open(ctx context.Context) error { return errNotCompiled }

func (b *Backend) Load(ctx context.Context, media domain.Media) (domain.Handle, error) {
	return "", errNotCompiled
}

func (b *Backend) Play(ctx context.Context, h domain.Handle) error   { return errNotCompiled }
func (b *Backend) Pause(ctx context.Context, h domain.Handle) error  { return errNotCompiled }
func (b *Backend) Resume(ctx context.Context, h domain.Handle) error { return errNotCompiled }
func (b *Backend) Stop(ctx context.Context, h domain.Handle) error   { return errNotCompiled }

func (b *Backend) Seek(ctx context.Context, h domain.Handle, offset float64) (float64, error) {
	return 0, errNotCompiled
}

func (b *Backend) Position(ctx context.Context, h domain.Handle) (float64, error) {
	return 0, errNotCompiled
}

// Subscribe returns a closed stream
func (b *Backend) Subscribe(h domain.Handle) <-chan domain.BackendEvent {
	ch := make(chan domain.BackendEvent)
	close(ch)
	return ch
}

func (b *Backend) Close(ctx context.Context) error { return nil }
