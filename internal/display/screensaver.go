//go:build linux
// +build linux

package display

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	inhibitApplication = "karaplayer"
	inhibitReason      = "Playing karaoke"
)

// ScreenSaver keeps the desktop screensaver away while songs play.
// The session bus is only contacted on the first inhibition.
type ScreenSaver struct {
	logger    *zap.Logger
	mu        sync.Mutex
	conn      DBusClient // Interface for testability
	connect   func() (DBusClient, error)
	cookie    uint32
	inhibited bool
}

// NewScreenSaver creates an inhibitor over the session bus
func NewScreenSaver(logger *zap.Logger) *ScreenSaver {
	return &ScreenSaver{
		logger: logger,
		connect: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Inhibit is idempotent: a second call keeps the first request
func (s *ScreenSaver) Inhibit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inhibited {
		return nil
	}
	if s.conn == nil {
		conn, err := s.connect()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		s.conn = conn
	}

	cookie, err := s.conn.Inhibit(ctx, inhibitApplication, inhibitReason)
	if err != nil {
		return fmt.Errorf("screensaver inhibit failed: %w", err)
	}
	s.cookie = cookie
	s.inhibited = true

	s.logger.Debug("Screensaver inhibited", zap.Uint32("cookie", cookie))
	return nil
}

// Release withdraws the current request, if any
func (s *ScreenSaver) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inhibited {
		return nil
	}
	s.inhibited = false

	if err := s.conn.UnInhibit(ctx, s.cookie); err != nil {
		return fmt.Errorf("screensaver release failed: %w", err)
	}
	s.logger.Debug("Screensaver released", zap.Uint32("cookie", s.cookie))
	return nil
}

// Close releases the request and the bus connection
func (s *ScreenSaver) Close(ctx context.Context) error {
	if err := s.Release(ctx); err != nil {
		s.logger.Warn("Failed to release screensaver", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
