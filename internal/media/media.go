// Package media inspects files next to a song: instrumental tracks,
// sidecar subtitles, and whether a background is a still image.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// headerSize is enough for every matcher filetype knows about
const headerSize = 262

var subtitleExtensions = []string{".ass", ".ssa"}

var stillExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsAudio detects audio files from their magic numbers
func IsAudio(path string) bool {
	head, err := readHeader(path)
	if err != nil {
		return false
	}
	return filetype.IsAudio(head)
}

// IsStill reports whether a background never ends on its own.
// Detection uses magic numbers, then the extension for unreadable files.
func IsStill(path string) bool {
	head, err := readHeader(path)
	if err == nil && len(head) > 0 {
		if filetype.IsImage(head) {
			return true
		}
		if filetype.IsVideo(head) {
			return false
		}
	}
	return stillExtensions[strings.ToLower(filepath.Ext(path))]
}

// AudioSiblings lists the audio files sharing the stem of a song file
func AudioSiblings(songPath string) ([]string, error) {
	dir := filepath.Dir(songPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	want := stem(songPath)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if path == songPath || stem(path) != want {
			continue
		}
		if IsAudio(path) {
			out = append(out, path)
		}
	}
	return out, nil
}

// InstrumentalFile returns the instrumental track of a song. A track is only
// accepted when exactly one audio file shares the song's stem; otherwise the
// empty string is returned and the song plays with its own audio.
func InstrumentalFile(songPath string) string {
	files, err := AudioSiblings(songPath)
	if err != nil || len(files) != 1 {
		return ""
	}
	return files[0]
}

// SubtitleFile returns the sidecar subtitle of a song, or the empty string
func SubtitleFile(songPath string) string {
	base := strings.TrimSuffix(songPath, filepath.Ext(songPath))
	for _, ext := range subtitleExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Exists reports whether path is a readable regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
