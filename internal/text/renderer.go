// Package text renders the ASS subtitle overlays of the transition and idle
// screens from song metadata.
package text

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/resource"
	"github.com/genricoloni/karaplayer/internal/resources"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Options name the configured template of each screen
type Options struct {
	Transition string
	Idle       string
	// OutputDir receives the rendered subtitle files
	OutputDir string
}

// Renderer turns templates and a TemplateContext into subtitle files
type Renderer struct {
	logger   *zap.Logger
	resolver *resource.Resolver
	res      *domain.ScreenResolution
	opts     Options
	icons    map[string]string
}

// NewRenderer creates a renderer and loads the packaged icon map
func NewRenderer(logger *zap.Logger, resolver *resource.Resolver, res *domain.ScreenResolution, opts Options) (*Renderer, error) {
	if opts.Transition == "" {
		opts.Transition = resources.TransitionTemplate
	}
	if opts.Idle == "" {
		opts.Idle = resources.IdleTemplate
	}
	if res == nil {
		res = &domain.ScreenResolution{Width: 1920, Height: 1080}
	}

	data, err := fs.ReadFile(resources.FS(), resources.IconMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon map: %w", err)
	}
	icons := make(map[string]string)
	if err := json.Unmarshal(data, &icons); err != nil {
		return nil, fmt.Errorf("failed to decode icon map: %w", err)
	}

	return &Renderer{
		logger:   logger,
		resolver: resolver,
		res:      res,
		opts:     opts,
		icons:    icons,
	}, nil
}

// Check makes sure every screen has a template. Custom templates that are
// missing are reported and replaced by the packaged ones.
func (r *Renderer) Check() error {
	for _, screen := range []domain.Screen{domain.ScreenTransition, domain.ScreenIdle} {
		if _, err := r.templatePath(screen); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) names(screen domain.Screen) (configured, packaged string, err error) {
	switch screen {
	case domain.ScreenTransition:
		return r.opts.Transition, resources.TransitionTemplate, nil
	case domain.ScreenIdle:
		return r.opts.Idle, resources.IdleTemplate, nil
	}
	return "", "", fmt.Errorf("no template for screen %q", screen)
}

func (r *Renderer) templatePath(screen domain.Screen) (string, error) {
	configured, packaged, err := r.names(screen)
	if err != nil {
		return "", err
	}
	path, err := r.resolver.Resolve(resources.KindTemplates, configured)
	if errors.Is(err, domain.ErrResourceNotFound) && configured != packaged {
		r.logger.Warn("Custom template not found, using default",
			zap.String("screen", string(screen)),
			zap.String("name", configured))
		path, err = r.resolver.Default(resources.KindTemplates, packaged)
	}
	if err != nil {
		return "", fmt.Errorf("no %s template: %w", screen, err)
	}
	return path, nil
}

// Render executes a template file against a context.
// Errors wrap domain.ErrSyntax or domain.ErrMissingVariable.
func (r *Renderer) Render(templatePath string, data domain.TemplateContext) (string, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return r.renderText(filepath.Base(templatePath), string(content), data)
}

func (r *Renderer) renderText(name, content string, data domain.TemplateContext) (string, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(r.funcMap()).
		Parse(content)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", name, err, domain.ErrSyntax)
	}

	vars, err := r.contextMap(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", classifyExecError(name, err)
	}

	out := norm.NFC.String(buf.String())
	if err := ValidateASS(out); err != nil {
		return "", fmt.Errorf("%s renders an invalid document: %w", name, err)
	}
	return out, nil
}

func classifyExecError(name string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "map has no entry for key") ||
		strings.Contains(msg, "nil pointer evaluating") ||
		strings.Contains(msg, "nil data; no entry for key") {
		return fmt.Errorf("%s: %v: %w", name, err, domain.ErrMissingVariable)
	}
	return fmt.Errorf("%s: %v: %w", name, err, domain.ErrSyntax)
}

// contextMap exposes the context with the field names templates use
func (r *Renderer) contextMap(data domain.TemplateContext) (map[string]any, error) {
	vars := map[string]any{
		"fade_in": data.FadeIn,
		"notes":   data.Notes,
		"screen": map[string]any{
			"width":  r.res.Width,
			"height": r.res.Height,
		},
		"playlist_entry": nil,
	}
	if data.Entry == nil {
		return vars, nil
	}

	entry := *data.Entry
	if entry.Song.Artists == nil {
		entry.Song.Artists = []domain.Artist{}
	}
	if entry.Song.Works == nil {
		entry.Song.Works = []domain.WorkLink{}
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	vars["playlist_entry"] = m
	return vars, nil
}

// RenderScreen renders the template of a screen into OutputDir/<screen>.ass.
// A failing template is logged and replaced by the packaged default.
func (r *Renderer) RenderScreen(screen domain.Screen, data domain.TemplateContext) (string, error) {
	_, packaged, err := r.names(screen)
	if err != nil {
		return "", err
	}

	var out string
	path, err := r.templatePath(screen)
	if err == nil {
		out, err = r.Render(path, data)
	}
	if err != nil {
		r.logger.Warn("Template failed, falling back to default",
			zap.String("screen", string(screen)),
			zap.Error(err))

		content, rerr := r.resolver.ReadDefault(resources.KindTemplates, packaged)
		if rerr != nil {
			return "", fmt.Errorf("failed to read default %s template: %w", screen, rerr)
		}
		out, err = r.renderText(packaged, string(content), data)
		if err != nil {
			return "", fmt.Errorf("default %s template failed: %w", screen, err)
		}
	}

	return r.write(screen, out)
}

func (r *Renderer) write(screen domain.Screen, content string) (string, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(r.opts.OutputDir, string(screen)+".ass")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write subtitle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to replace subtitle: %w", err)
	}

	r.logger.Debug("Subtitle rendered", zap.String("path", path))
	return path, nil
}
