// Package resource resolves templates and backgrounds, preferring files in
// the user override directory over the packaged defaults.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/zap"
)

// Resolver looks resources up in <userDir>/<kind>/<name>, then in the
// packaged defaults. Packaged files are extracted once into the runtime
// directory so that backends can open them by path.
type Resolver struct {
	logger     *zap.Logger
	userDir    string
	packaged   fs.FS
	runtimeDir string

	mu        sync.Mutex
	extracted map[string]string
}

// NewResolver creates a resolver; userDir may be empty
func NewResolver(logger *zap.Logger, userDir string, packaged fs.FS, runtimeDir string) *Resolver {
	return &Resolver{
		logger:     logger,
		userDir:    userDir,
		packaged:   packaged,
		runtimeDir: runtimeDir,
		extracted:  make(map[string]string),
	}
}

// Resolve returns the path of a resource
func (r *Resolver) Resolve(kind, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty %s name: %w", kind, domain.ErrResourceNotFound)
	}

	if r.userDir != "" {
		path := filepath.Join(r.userDir, kind, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			r.logger.Debug("Using custom resource",
				zap.String("kind", kind),
				zap.String("path", path))
			return path, nil
		}
	}

	return r.Default(kind, name)
}

// Default returns the packaged resource, extracting it on first use
func (r *Resolver) Default(kind, name string) (string, error) {
	key := kind + "/" + name

	r.mu.Lock()
	defer r.mu.Unlock()
	if path, ok := r.extracted[key]; ok {
		return path, nil
	}

	data, err := fs.ReadFile(r.packaged, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s %q: %w", kind, name, domain.ErrResourceNotFound)
		}
		return "", fmt.Errorf("failed to read packaged %s: %w", key, err)
	}

	dir := filepath.Join(r.runtimeDir, "resources", kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create resource directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", key, err)
	}

	r.extracted[key] = path
	r.logger.Debug("Extracted packaged resource", zap.String("path", path))
	return path, nil
}

// ReadDefault returns the content of a packaged resource
func (r *Resolver) ReadDefault(kind, name string) ([]byte, error) {
	data, err := fs.ReadFile(r.packaged, kind+"/"+name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s %q: %w", kind, name, domain.ErrResourceNotFound)
	}
	return data, err
}
