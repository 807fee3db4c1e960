package models

import (
	"encoding/json"
	"time"
)

// FlexTime decodes the timestamp representations that show up on the wire:
// an RFC3339 string, a unix seconds or milliseconds number, or a
// server-timestamp object with seconds/nanos fields. A value that fits none
// of those decodes to nil rather than to "now" -- substituting the current
// time would corrupt recency sorting.
type FlexTime struct {
	t *time.Time
}

// NewFlexTime wraps a concrete time.
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{t: &t}
}

// Time returns the decoded time or nil.
func (f FlexTime) Time() *time.Time {
	return f.t
}

// millisThreshold separates unix-seconds from unix-millis payloads. Values
// above it would be year 33658 as seconds, so they are read as milliseconds.
const millisThreshold = 1e12

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	f.t = nil

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				f.t = &t
				return nil
			}
		}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return nil
		}
		var t time.Time
		if n >= millisThreshold {
			t = time.UnixMilli(int64(n)).UTC()
		} else {
			t = time.Unix(int64(n), 0).UTC()
		}
		f.t = &t
		return nil
	}

	var sentinel struct {
		Seconds *int64 `json:"seconds"`
		Nanos   int64  `json:"nanos"`
	}
	if err := json.Unmarshal(data, &sentinel); err == nil && sentinel.Seconds != nil {
		t := time.Unix(*sentinel.Seconds, sentinel.Nanos).UTC()
		f.t = &t
		return nil
	}

	// Unparseable values (including null) normalize to nil, never to an error:
	// a bad timestamp must not fail the whole snapshot decode.
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(f.t.Format(time.RFC3339Nano))
}
