package legacy

import (
	"strings"
	"time"

	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// ParseTimestamp parses an RFC 3339 time or a zone-less ISO 8601 time, the
// latter read in loc. The result is in UTC.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	return recordstore.ParseTimestamp(s, loc)
}

// parseOptional returns nil for an empty s.
func parseOptional(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
