package display

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverName      = "org.freedesktop.ScreenSaver"
	screenSaverPath      = "/org/freedesktop/ScreenSaver"
	screenSaverInterface = "org.freedesktop.ScreenSaver"
)

// DBusClient defines the D-Bus operations used to keep the screen awake.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/karaplayer/internal/display DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Inhibit asks the screensaver service to stay inactive and returns the
	// cookie naming the request
	Inhibit(ctx context.Context, application, reason string) (uint32, error)

	// UnInhibit withdraws a previous request
	UnInhibit(ctx context.Context, cookie uint32) error
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// Inhibit calls org.freedesktop.ScreenSaver.Inhibit
func (c *StdDBusClient) Inhibit(ctx context.Context, application, reason string) (uint32, error) {
	var cookie uint32
	obj := c.conn.Object(screenSaverName, dbus.ObjectPath(screenSaverPath))
	err := obj.CallWithContext(ctx, screenSaverInterface+".Inhibit", 0, application, reason).Store(&cookie)
	return cookie, err
}

// UnInhibit calls org.freedesktop.ScreenSaver.UnInhibit
func (c *StdDBusClient) UnInhibit(ctx context.Context, cookie uint32) error {
	obj := c.conn.Object(screenSaverName, dbus.ObjectPath(screenSaverPath))
	return obj.CallWithContext(ctx, screenSaverInterface+".UnInhibit", 0, cookie).Err
}
