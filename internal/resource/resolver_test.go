package resource

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeUserFile(t *testing.T, dir, kind, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, kind, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestResolver_Resolve(t *testing.T) {
	packaged := fstest.MapFS{
		"templates/transition.ass": {Data: []byte("packaged transition")},
	}
	userDir := t.TempDir()
	custom := writeUserFile(t, userDir, "templates", "custom.ass", []byte("custom"))
	writeUserFile(t, userDir, "templates", "transition.ass", []byte("override"))

	r := NewResolver(zap.NewNop(), userDir, packaged, t.TempDir())

	tests := []struct {
		name        string
		resource    string
		wantContent string
		wantErr     error
	}{
		{name: "User file", resource: "custom.ass", wantContent: "custom"},
		{name: "User overrides packaged", resource: "transition.ass", wantContent: "override"},
		{name: "Missing everywhere", resource: "missing.ass", wantErr: domain.ErrResourceNotFound},
		{name: "Empty name", resource: "", wantErr: domain.ErrResourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := r.Resolve("templates", tt.resource)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, string(data))
		})
	}

	path, err := r.Resolve("templates", "custom.ass")
	require.NoError(t, err)
	assert.Equal(t, custom, path)
}

func TestResolver_PackagedFallback(t *testing.T) {
	packaged := fstest.MapFS{
		"templates/idle.ass": {Data: []byte("packaged idle")},
	}
	runtimeDir := t.TempDir()
	r := NewResolver(zap.NewNop(), "", packaged, runtimeDir)

	path, err := r.Resolve("templates", "idle.ass")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runtimeDir, "resources", "templates", "idle.ass"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "packaged idle", string(data))

	again, err := r.Default("templates", "idle.ass")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestResolver_ShippedDefaultsExist(t *testing.T) {
	r := NewResolver(zap.NewNop(), "", resources.FS(), t.TempDir())

	for _, res := range []struct{ kind, name string }{
		{resources.KindTemplates, resources.TransitionTemplate},
		{resources.KindTemplates, resources.IdleTemplate},
		{resources.KindBackgrounds, resources.TransitionBackground},
		{resources.KindBackgrounds, resources.IdleBackground},
	} {
		_, err := r.Resolve(res.kind, res.name)
		assert.NoError(t, err, "%s/%s must ship with the player", res.kind, res.name)
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestBackgroundLoader_Load(t *testing.T) {
	userDir := t.TempDir()
	writeUserFile(t, userDir, "backgrounds", "custom.png", encodePNG(t, 40, 20))
	writeUserFile(t, userDir, "backgrounds", "loop.mkv", []byte("not an image"))

	tests := []struct {
		name       string
		opts       BackgroundOptions
		wantStill  map[domain.Screen]bool
		wantInPath map[domain.Screen]string
	}{
		{
			name:       "Defaults",
			opts:       BackgroundOptions{},
			wantStill:  map[domain.Screen]bool{domain.ScreenTransition: true, domain.ScreenIdle: true},
			wantInPath: map[domain.Screen]string{domain.ScreenTransition: "transition.png", domain.ScreenIdle: "idle.png"},
		},
		{
			name:       "Custom still and video",
			opts:       BackgroundOptions{Transition: "custom.png", Idle: "loop.mkv"},
			wantStill:  map[domain.Screen]bool{domain.ScreenTransition: true, domain.ScreenIdle: false},
			wantInPath: map[domain.Screen]string{domain.ScreenTransition: "custom.png", domain.ScreenIdle: "loop.mkv"},
		},
		{
			name:       "Missing custom falls back",
			opts:       BackgroundOptions{Transition: "missing.png"},
			wantStill:  map[domain.Screen]bool{domain.ScreenTransition: true},
			wantInPath: map[domain.Screen]string{domain.ScreenTransition: "transition.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtimeDir := t.TempDir()
			r := NewResolver(zap.NewNop(), userDir, resources.FS(), runtimeDir)
			l := NewBackgroundLoader(zap.NewNop(), r, nil, tt.opts, runtimeDir)
			require.NoError(t, l.Load())

			for screen, still := range tt.wantStill {
				path, gotStill := l.Background(screen)
				assert.Equal(t, still, gotStill, "still flag for %s", screen)
				assert.Equal(t, tt.wantInPath[screen], filepath.Base(path))
			}
		})
	}
}

func TestBackgroundLoader_MissingDefault(t *testing.T) {
	r := NewResolver(zap.NewNop(), "", fstest.MapFS{}, t.TempDir())
	l := NewBackgroundLoader(zap.NewNop(), r, nil, BackgroundOptions{}, t.TempDir())
	assert.ErrorIs(t, l.Load(), domain.ErrResourceNotFound)
}

func TestBackgroundLoader_Fit(t *testing.T) {
	userDir := t.TempDir()
	writeUserFile(t, userDir, "backgrounds", "wide.png", encodePNG(t, 64, 16))

	runtimeDir := t.TempDir()
	r := NewResolver(zap.NewNop(), userDir, resources.FS(), runtimeDir)
	res := &domain.ScreenResolution{Width: 32, Height: 18}
	l := NewBackgroundLoader(zap.NewNop(), r, res, BackgroundOptions{Transition: "wide.png", Fit: true}, runtimeDir)
	require.NoError(t, l.Load())

	path, still := l.Background(domain.ScreenTransition)
	require.True(t, still)
	assert.Equal(t, filepath.Join(runtimeDir, "backgrounds", "transition.jpg"), path)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 18, img.Bounds().Dy())
}

func TestSaveImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	tests := []struct {
		name    string
		encode  func(io.Writer, image.Image) error
		wantErr bool
	}{
		{name: "Encoded", encode: encodeJPEG},
		{
			name: "Encoder fails halfway",
			encode: func(w io.Writer, _ image.Image) error {
				_, _ = w.Write([]byte{0xff, 0xd8})
				return errors.New("short write")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "transition.jpg")

			err := saveImage(path, img, tt.encode)
			if tt.wantErr {
				require.Error(t, err)
				assert.NoFileExists(t, path)
				assert.NoFileExists(t, path+".tmp")
				return
			}
			require.NoError(t, err)
			assert.NoFileExists(t, path+".tmp")
			_, err = imaging.Open(path)
			assert.NoError(t, err)
		})
	}
}
