package resource

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	_ "image/png" // PNG format support
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/media"
	"github.com/genricoloni/karaplayer/internal/resources"
	"go.uber.org/zap"
)

// BackgroundOptions name the configured background of each screen
type BackgroundOptions struct {
	Transition string
	Idle       string
	// Fit scales still backgrounds to the screen resolution
	Fit bool
}

type background struct {
	path  string
	still bool
}

// BackgroundLoader resolves the background of each screen once at startup
type BackgroundLoader struct {
	logger     *zap.Logger
	resolver   *Resolver
	res        *domain.ScreenResolution
	opts       BackgroundOptions
	runtimeDir string

	mu     sync.RWMutex
	loaded map[domain.Screen]background
}

// NewBackgroundLoader creates a loader; call Load before Background
func NewBackgroundLoader(logger *zap.Logger, resolver *Resolver, res *domain.ScreenResolution, opts BackgroundOptions, runtimeDir string) *BackgroundLoader {
	if opts.Transition == "" {
		opts.Transition = resources.TransitionBackground
	}
	if opts.Idle == "" {
		opts.Idle = resources.IdleBackground
	}
	return &BackgroundLoader{
		logger:     logger,
		resolver:   resolver,
		res:        res,
		opts:       opts,
		runtimeDir: runtimeDir,
		loaded:     make(map[domain.Screen]background),
	}
}

// Load resolves every background. A missing custom background falls back
// to the packaged one; a missing packaged background is an error.
func (l *BackgroundLoader) Load() error {
	screens := []struct {
		screen      domain.Screen
		name        string
		defaultName string
	}{
		{domain.ScreenTransition, l.opts.Transition, resources.TransitionBackground},
		{domain.ScreenIdle, l.opts.Idle, resources.IdleBackground},
	}

	for _, s := range screens {
		path, err := l.resolver.Resolve(resources.KindBackgrounds, s.name)
		if errors.Is(err, domain.ErrResourceNotFound) && s.name != s.defaultName {
			l.logger.Warn("Custom background not found, using default",
				zap.String("screen", string(s.screen)),
				zap.String("name", s.name))
			path, err = l.resolver.Resolve(resources.KindBackgrounds, s.defaultName)
		}
		if err != nil {
			return fmt.Errorf("no %s background: %w", s.screen, err)
		}

		bg := background{path: path, still: media.IsStill(path)}
		if bg.still && l.opts.Fit && l.res != nil {
			fitted, err := l.fit(s.screen, path)
			if err != nil {
				l.logger.Warn("Failed to fit background, using it unscaled",
					zap.String("path", path),
					zap.Error(err))
			} else {
				bg.path = fitted
			}
		}

		l.mu.Lock()
		l.loaded[s.screen] = bg
		l.mu.Unlock()

		l.logger.Info("Background loaded",
			zap.String("screen", string(s.screen)),
			zap.String("path", bg.path),
			zap.Bool("still", bg.still))
	}
	return nil
}

// fit crops and scales a still image to cover the whole screen
func (l *BackgroundLoader) fit(screen domain.Screen, path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	if bounds.Dx() == l.res.Width && bounds.Dy() == l.res.Height {
		return path, nil
	}

	l.logger.Debug("Fitting background", zap.Int("w", l.res.Width), zap.Int("h", l.res.Height))
	var fitted image.Image = imaging.Fill(src, l.res.Width, l.res.Height, imaging.Center, imaging.Lanczos)

	dir := filepath.Join(l.runtimeDir, "backgrounds")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	out := filepath.Join(dir, string(screen)+".jpg")

	if err := saveImage(out, fitted, encodeJPEG); err != nil {
		return "", err
	}
	return out, nil
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}

// saveImage writes through a temporary file so a failed write never leaves
// a truncated image at path
func saveImage(path string, img image.Image, encode func(io.Writer, image.Image) error) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode background: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move background into place: %w", err)
	}
	return nil
}

// Background returns the resolved background of a screen
func (l *BackgroundLoader) Background(screen domain.Screen) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bg := l.loaded[screen]
	return bg.path, bg.still
}
