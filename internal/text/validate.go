package text

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/genricoloni/karaplayer/internal/domain"
)

var timestampRe = regexp.MustCompile(`^\d:\d{2}:\d{2}\.\d{2}$`)

// ValidateASS checks what libass and mpv need to display a document: the
// script info and events sections, well-formed dialogue lines and balanced
// override blocks.
func ValidateASS(doc string) error {
	var (
		section    string
		seenInfo   bool
		seenEvents bool
		fields     []string
		lineNo     int
	)

	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line)
			switch section {
			case "[script info]":
				seenInfo = true
			case "[events]":
				seenEvents = true
			}
			continue
		}

		if section != "[events]" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("line %d: missing field separator: %w", lineNo, domain.ErrSyntax)
		}
		switch key {
		case "Format":
			fields = nil
			for _, f := range strings.Split(value, ",") {
				fields = append(fields, strings.TrimSpace(f))
			}
		case "Dialogue", "Comment":
			if fields == nil {
				return fmt.Errorf("line %d: event before format line: %w", lineNo, domain.ErrSyntax)
			}
			if err := checkEvent(fields, strings.TrimLeft(value, " ")); err != nil {
				return fmt.Errorf("line %d: %v: %w", lineNo, err, domain.ErrSyntax)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read document: %v: %w", err, domain.ErrSyntax)
	}

	if !seenInfo {
		return fmt.Errorf("missing [Script Info] section: %w", domain.ErrSyntax)
	}
	if !seenEvents {
		return fmt.Errorf("missing [Events] section: %w", domain.ErrSyntax)
	}
	return nil
}

func checkEvent(fields []string, value string) error {
	parts := strings.SplitN(value, ",", len(fields))
	if len(parts) != len(fields) {
		return fmt.Errorf("expected %d fields, got %d", len(fields), len(parts))
	}

	for i, name := range fields {
		switch name {
		case "Start", "End":
			if !timestampRe.MatchString(strings.TrimSpace(parts[i])) {
				return fmt.Errorf("invalid %s timestamp %q", name, parts[i])
			}
		case "Text":
			if err := checkOverrides(parts[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkOverrides rejects nested, unopened or unclosed override blocks
func checkOverrides(text string) error {
	open := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if i+1 < len(text) && (text[i+1] == '{' || text[i+1] == '}') && !open {
				i++
			}
		case '{':
			if open {
				return fmt.Errorf("nested override block at %d", i)
			}
			open = true
		case '}':
			if !open {
				return fmt.Errorf("unopened override block at %d", i)
			}
			open = false
		}
	}
	if open {
		return fmt.Errorf("unclosed override block")
	}
	return nil
}
