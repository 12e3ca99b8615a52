// Package sanitize normalizes user-supplied display strings before they enter
// room or player state.
package sanitize

import "strings"

// Character-class limits shared by the join handler and its error messages.
const (
	MaxNameLen     = 35
	MaxPasswordLen = 100
)

// Clean filters raw down to spaces, ASCII letters, digits, '.', '_' and '-',
// trims surrounding whitespace, and truncates to max bytes.
//
// Postcondition: Clean(Clean(s, n), n) == Clean(s, n) for all s, n.
func Clean(raw string, max int) string {
	filtered := strings.Map(func(r rune) rune {
		switch {
		case r == ' ', r == '.', r == '_', r == '-':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, raw)

	filtered = strings.TrimSpace(filtered)
	if max >= 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	// A truncation can expose a trailing space; trim again so the
	// result is a fixed point.
	return strings.TrimSpace(filtered)
}

// Name cleans a player or room name.
func Name(raw string) string { return Clean(raw, MaxNameLen) }

// Password cleans a room password.
func Password(raw string) string { return Clean(raw, MaxPasswordLen) }
