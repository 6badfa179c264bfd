// Package resources ships the default templates, backgrounds and icon map.
package resources

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.ass backgrounds/*.png icons.json
var files embed.FS

// Kinds of packaged resources
const (
	KindTemplates   = "templates"
	KindBackgrounds = "backgrounds"
)

// Default file names per screen
const (
	TransitionTemplate   = "transition.ass"
	IdleTemplate         = "idle.ass"
	TransitionBackground = "transition.png"
	IdleBackground       = "idle.png"
	IconMap              = "icons.json"
)

// FS returns the packaged resources
func FS() fs.FS {
	return files
}
