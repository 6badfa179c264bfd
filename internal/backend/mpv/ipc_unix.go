//go:build !windows
// +build !windows

package mpv

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"
)

func defaultSocketPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "mpv.sock")
}

// dialSocket waits for mpv to create its IPC socket
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-ticker.C:
		}
	}
}

func removeStaleSocket(path string) {
	_ = os.Remove(path)
}
