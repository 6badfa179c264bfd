package text

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/resource"
	"github.com/genricoloni/karaplayer/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEntry() *domain.PlaylistEntry {
	second := 2
	return &domain.PlaylistEntry{
		ID: 42,
		Song: domain.Song{
			Title:    "Sakura {Ver.}",
			Duration: 215.4,
			FilePath: "anime/sakura.mkv",
			Artists:  []domain.Artist{{Name: "Ikimono"}, {Name: "Gakari"}},
			Works: []domain.WorkLink{{
				Work:           domain.Work{Title: "Naruto", WorkType: domain.WorkType{Name: "Anime", IconName: "tv"}},
				LinkType:       "OP",
				LinkTypeNumber: &second,
			}},
		},
		Owner: domain.Owner{ID: 1, Username: "alice"},
	}
}

func newTestRenderer(t *testing.T, userDir string, opts Options) *Renderer {
	t.Helper()
	runtimeDir := t.TempDir()
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(runtimeDir, "text")
	}
	resolver := resource.NewResolver(zap.NewNop(), userDir, resources.FS(), runtimeDir)
	r, err := NewRenderer(zap.NewNop(), resolver, &domain.ScreenResolution{Width: 1280, Height: 720}, opts)
	require.NoError(t, err)
	return r
}

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, resources.KindTemplates, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRenderScreen_DefaultTransition(t *testing.T) {
	r := newTestRenderer(t, "", Options{})

	path, err := r.RenderScreen(domain.ScreenTransition, domain.TemplateContext{Entry: testEntry(), FadeIn: true})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)

	assert.NoError(t, ValidateASS(doc))
	assert.Contains(t, doc, "PlayResX: 1280")
	assert.Contains(t, doc, `Sakura \{Ver.\}`)
	assert.Contains(t, doc, "Naruto, Opening 2")
	assert.Contains(t, doc, "Ikimono, Gakari")
	assert.Contains(t, doc, "Requested by alice")
	assert.Contains(t, doc, "3:35")
	assert.Contains(t, doc, `{\fad(500,0)}`)
	assert.Contains(t, doc, "\uf26c", "tv icon glyph")
}

func TestRenderScreen_NoFadeWithoutFlag(t *testing.T) {
	r := newTestRenderer(t, "", Options{})

	path, err := r.RenderScreen(domain.ScreenTransition, domain.TemplateContext{Entry: testEntry()})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `\fad`)
}

func TestRenderScreen_Idle(t *testing.T) {
	r := newTestRenderer(t, "", Options{})

	path, err := r.RenderScreen(domain.ScreenIdle, domain.TemplateContext{Notes: []string{"mpv 0.38.0", "karaplayer dev"}})
	require.NoError(t, err)
	assert.Equal(t, "idle.ass", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, ValidateASS(string(data)))
	assert.Contains(t, string(data), `mpv 0.38.0\Nkaraplayer dev`)
}

func TestRenderScreen_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{
			name:     "Missing variable",
			template: "[Script Info]\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:00.00,0:00:05.00,Default,,0,0,0,,{{ .playlist_entry.song.lyrics }}\n",
		},
		{
			name:     "Syntax error",
			template: "[Script Info]\n{{ if .fade_in }\n",
		},
		{
			name:     "Unbalanced override",
			template: "[Script Info]\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:00.00,0:00:05.00,Default,,0,0,0,,{\\b1 {{ .playlist_entry.song.title }}\n",
		},
		{
			name:     "Not a subtitle",
			template: "{{ .playlist_entry.song.title }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userDir := t.TempDir()
			writeTemplate(t, userDir, "custom.ass", tt.template)
			r := newTestRenderer(t, userDir, Options{Transition: "custom.ass"})

			path, err := r.RenderScreen(domain.ScreenTransition, domain.TemplateContext{Entry: testEntry()})
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NoError(t, ValidateASS(string(data)), "fallback must be a valid document")
			assert.Contains(t, string(data), "karaplayer transition screen")
		})
	}
}

func TestRenderScreen_CustomTemplate(t *testing.T) {
	userDir := t.TempDir()
	writeTemplate(t, userDir, "custom.ass", "[Script Info]\nTitle: mine\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:00.00,{{ .playlist_entry.song.duration | duration }},Default,,0,0,0,,{{ .playlist_entry.song.title | upper | ass_escape }}\n")
	r := newTestRenderer(t, userDir, Options{Transition: "custom.ass"})

	path, err := r.RenderScreen(domain.ScreenTransition, domain.TemplateContext{Entry: testEntry()})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), `0:03:35.40,Default,,0,0,0,,SAKURA \{VER.\}`)
}

func TestRender_ErrorKinds(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, "", Options{})

	tests := []struct {
		name     string
		template string
		ctx      domain.TemplateContext
		wantErr  error
	}{
		{name: "Parse error", template: "{{ .fade_in ", wantErr: domain.ErrSyntax},
		{name: "Unknown function", template: "{{ .fade_in | nope }}", wantErr: domain.ErrSyntax},
		{name: "Unknown key", template: "{{ .playlist_entry.song.lyrics }}", ctx: domain.TemplateContext{Entry: testEntry()}, wantErr: domain.ErrMissingVariable},
		{name: "No entry", template: "{{ .playlist_entry.song.title }}", wantErr: domain.ErrMissingVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".ass")
			require.NoError(t, os.WriteFile(path, []byte(tt.template), 0644))

			_, err := r.Render(path, tt.ctx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRender_NormalizesUnicode(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, "", Options{})

	path := filepath.Join(dir, "nfc.ass")
	require.NoError(t, os.WriteFile(path, []byte("[Script Info]\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:00.00,0:00:05.00,Default,,0,0,0,,{{ .playlist_entry.song.title }}\n"), 0644))

	entry := testEntry()
	entry.Song.Title = "Cafe\u0301"
	out, err := r.Render(path, domain.TemplateContext{Entry: entry})
	require.NoError(t, err)
	assert.Contains(t, out, "Caf\u00e9")
	assert.NotContains(t, out, "e\u0301")
}

func TestRenderScreen_UnknownScreen(t *testing.T) {
	r := newTestRenderer(t, "", Options{})
	_, err := r.RenderScreen(domain.ScreenSong, domain.TemplateContext{})
	assert.Error(t, err)
}

func TestRenderer_Check(t *testing.T) {
	r := newTestRenderer(t, "", Options{Transition: "missing.ass"})
	assert.NoError(t, r.Check(), "missing custom templates fall back to the packaged ones")
}
