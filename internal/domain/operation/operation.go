// Package operation defines the catalog of augmentation operations: the
// instruction sent to the provider, the idempotency markers that mark an
// item as already augmented, and the checks an output must pass.
package operation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMinLengthRatio is used when an operation does not set one.
const DefaultMinLengthRatio = 0.9

// ErrNoContentGenerated is returned for empty provider output.
var ErrNoContentGenerated = errors.New("no content generated")

// Marker is a named pattern an augmented item must contain.
type Marker struct {
	Name    string
	pattern *regexp.Regexp
}

// NewMarker compiles a marker pattern.
func NewMarker(name, pattern string) (Marker, error) {
	if name == "" {
		return Marker{}, errors.New("marker name is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Marker{}, fmt.Errorf("marker %s: %w", name, err)
	}
	return Marker{Name: name, pattern: re}, nil
}

// Matches reports whether content contains the marker.
func (m Marker) Matches(content string) bool {
	return m.pattern != nil && m.pattern.MatchString(content)
}

// Operation describes one kind of augmentation.
type Operation struct {
	Name            string
	Description     string
	Instruction     string
	RequiredMarkers []Marker
	MinLengthRatio  float64
}

// Satisfied reports whether content already carries every required marker.
// An operation without markers is never considered satisfied.
func (o *Operation) Satisfied(content string) (bool, string) {
	if len(o.RequiredMarkers) == 0 {
		return false, ""
	}
	names := make([]string, 0, len(o.RequiredMarkers))
	for _, m := range o.RequiredMarkers {
		if !m.Matches(content) {
			return false, ""
		}
		names = append(names, m.Name)
	}
	return true, "already contains " + strings.Join(names, ", ")
}

// ValidateOutput normalizes provider output and rejects anything that is
// visibly wrong: empty text, missing required markers, or text noticeably
// shorter than the original.
func (o *Operation) ValidateOutput(original, output string) (string, error) {
	cleaned := stripCodeFence(strings.TrimSpace(output))
	if cleaned == "" {
		return "", ErrNoContentGenerated
	}

	var missing []string
	for _, m := range o.RequiredMarkers {
		if !m.Matches(cleaned) {
			missing = append(missing, m.Name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("output missing required marker(s): %s", strings.Join(missing, ", "))
	}

	ratio := o.MinLengthRatio
	if ratio <= 0 {
		ratio = DefaultMinLengthRatio
	}
	minLen := int(float64(len(strings.TrimSpace(original))) * ratio)
	if len(cleaned) < minLen {
		return "", fmt.Errorf("output drops existing content: %d chars, expected at least %d", len(cleaned), minLen)
	}

	return cleaned, nil
}

// stripCodeFence removes a single markdown fence wrapping the whole text.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	newline := strings.IndexByte(body, '\n')
	if newline < 0 {
		return s
	}
	return strings.TrimSpace(body[newline+1:])
}
