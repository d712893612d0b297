package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is the ISO 8601 form the marketplace API sends for its
// timezone-less UTC columns, e.g. "2024-01-15T10:30:00.123456".
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a wire time. It decodes RFC 3339 and timestamps without an
// offset, which are taken as UTC. It encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler. null leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: not RFC 3339 or %s", s, naiveLayout)
	}
	t.Time = parsed
	return nil
}
