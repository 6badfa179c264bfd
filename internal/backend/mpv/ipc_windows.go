//go:build windows
// +build windows

package mpv

import (
	"context"
	"fmt"
	"net"
)

func defaultSocketPath(runtimeDir string) string {
	return `\\.\pipe\karaplayer-mpv`
}

// dialSocket is not implemented: mpv exposes a named pipe on Windows
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	return nil, fmt.Errorf("mpv IPC over named pipes is not supported on Windows")
}

func removeStaleSocket(path string) {}
