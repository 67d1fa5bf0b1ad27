package models

import (
	"fmt"
	"time"
)

// Timestamp is a creation time as formatted by the backend. It is kept as the
// original string so values round-trip unchanged.
type Timestamp string

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Time parses the timestamp. Values without a zone are read as UTC.
func (t Timestamp) Time() (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, string(t)); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", string(t))
}
