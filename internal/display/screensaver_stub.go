//go:build !linux
// +build !linux

package display

import (
	"context"

	"go.uber.org/zap"
)

// ScreenSaver stub for non-Linux platforms
type ScreenSaver struct {
	logger *zap.Logger
}

// NewScreenSaver creates a stub inhibitor that does nothing on non-Linux platforms
func NewScreenSaver(logger *zap.Logger) *ScreenSaver {
	return &ScreenSaver{logger: logger}
}

// Inhibit is a no-op on non-Linux platforms
func (s *ScreenSaver) Inhibit(ctx context.Context) error {
	s.logger.Debug("Screensaver inhibition is only supported on Linux systems")
	return nil
}

// Release is a no-op on non-Linux platforms
func (s *ScreenSaver) Release(ctx context.Context) error {
	return nil
}

// Close is a no-op on non-Linux platforms
func (s *ScreenSaver) Close(ctx context.Context) error {
	return nil
}
