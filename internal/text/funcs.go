package text

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var linkTypeNames = map[string]string{
	"OP": "Opening",
	"ED": "Ending",
	"IN": "Insert song",
	"IS": "Image song",
}

var titleCaser = cases.Title(language.English)

func toSeconds(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// formatDuration renders seconds as H:MM:SS.cc, the ASS timestamp format
func formatDuration(v any) string {
	seconds, ok := toSeconds(v)
	if !ok {
		return ""
	}
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	centis := int64(math.Round(seconds * 100))
	h := centis / 360000
	m := centis / 6000 % 60
	s := centis / 100 % 60
	cs := centis % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// formatShortDuration renders seconds as M:SS, or H:MM:SS past one hour
func formatShortDuration(v any) string {
	seconds, ok := toSeconds(v)
	if !ok {
		return ""
	}
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// linkTypeName expands OP/ED/IN/IS; other codes are title-cased
func linkTypeName(code string) string {
	if name, ok := linkTypeNames[strings.ToUpper(code)]; ok {
		return name
	}
	if code == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(code, "_", " ")))
}

var assEscaper = strings.NewReplacer(
	"{", `\{`,
	"}", `\}`,
	"\r\n", `\N`,
	"\n", `\N`,
)

// assEscape keeps metadata from opening override blocks or breaking lines
func assEscape(v any) string {
	if v == nil {
		return ""
	}
	return assEscaper.Replace(fmt.Sprint(v))
}

func (r *Renderer) icon(name any) string {
	s, _ := name.(string)
	if s == "" {
		return ""
	}
	code, ok := r.icons[s]
	if !ok {
		return " "
	}
	n, err := strconv.ParseUint(code, 16, 32)
	if err != nil {
		return " "
	}
	return string(rune(n))
}

func (r *Renderer) funcMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["duration"] = formatDuration
	funcs["short_duration"] = formatShortDuration
	funcs["icon"] = r.icon
	funcs["link_type_name"] = linkTypeName
	funcs["ass_escape"] = assEscape
	return funcs
}
