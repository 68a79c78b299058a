package domain

import (
	"strings"
	"time"
)

// timestampLayouts are the textual forms produced by the source mappings:
// Infoclimat UTC timestamps and Weather Underground 12h/24h local times.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 3:04 PM",
	"2006-01-02 03:04 PM",
	"2006-01-02 3:04:05 PM",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a canonical timestamp string. Times carry no zone
// information and are returned in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
