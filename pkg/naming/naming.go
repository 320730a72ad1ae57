// Package naming encodes the challenge channel naming scheme: an optional
// status marker followed by the challenge's base name.
package naming

import (
	"strings"
	"unicode/utf8"
)

// MaxChannelNameLength is Discord's limit for a guild channel name, in characters.
const MaxChannelNameLength = 100

// FallbackChannelName is used as the base when a fetched channel has no name.
const FallbackChannelName = "channel"

// Marker is a status prefix carried at the start of a channel name.
type Marker string

const (
	None    Marker = ""
	Solved  Marker = "✅-solved-"
	Pending Marker = "❓-pending-"
)

// Markers lists the known markers in the order StripMarker scans them.
var Markers = []Marker{Solved, Pending}

// String returns a short label for logs.
func (m Marker) String() string {
	switch m {
	case Solved:
		return "solved"
	case Pending:
		return "pending"
	default:
		return "none"
	}
}

// StripMarker removes the first known marker found at the start of name.
// Only one marker is removed; a name carrying two stacked markers keeps the second.
func StripMarker(name string) (Marker, string) {
	for _, m := range Markers {
		if base, ok := strings.CutPrefix(name, string(m)); ok {
			return m, base
		}
	}
	return None, name
}

// ApplyMarker prefixes base with m.
func ApplyMarker(m Marker, base string) string {
	return string(m) + base
}

// HasMarker reports whether name starts with m. None never matches.
func HasMarker(name string, m Marker) bool {
	if m == None {
		return false
	}
	return strings.HasPrefix(name, string(m))
}

// Length returns the number of characters in name.
func Length(name string) int {
	return utf8.RuneCountInString(name)
}

// Clamp truncates name to at most max characters. No attempt is made to cut on a
// word or marker boundary.
func Clamp(name string, max int) string {
	if max < 0 {
		max = 0
	}
	if Length(name) <= max {
		return name
	}
	runes := []rune(name)
	return string(runes[:max])
}

// NormalizeArgument turns a free-text command argument into a channel name:
// the first space becomes a hyphen, the result is lowercased and trimmed.
// Later spaces are left alone. An empty result means the argument is missing.
func NormalizeArgument(raw string) string {
	return strings.TrimSpace(strings.ToLower(strings.Replace(raw, " ", "-", 1)))
}
