package store

import (
	"encoding/json"
	"time"
)

// Timestamp is either a fixed instant or a "use the server clock at write
// time" marker. The marker is resolved only at the store-write boundary;
// the value is never compared as a plain number elsewhere.
type Timestamp struct {
	millis    int64
	serverNow bool
}

// FixedTimestamp wraps a concrete instant.
func FixedTimestamp(t time.Time) Timestamp {
	return Timestamp{millis: t.UnixMilli()}
}

// ServerNow returns the write-time marker.
func ServerNow() Timestamp {
	return Timestamp{serverNow: true}
}

// IsServerNow reports whether the value is the write-time marker.
func (t Timestamp) IsServerNow() bool {
	return t.serverNow
}

// Resolve returns the concrete instant, substituting now for the marker.
func (t Timestamp) Resolve(now time.Time) time.Time {
	if t.serverNow {
		return now
	}
	return time.UnixMilli(t.millis).UTC()
}

type timestampJSON struct {
	Millis    int64 `json:"millis"`
	ServerNow bool  `json:"server_now,omitempty"`
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(timestampJSON{Millis: t.millis, ServerNow: t.serverNow})
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw timestampJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.millis = raw.Millis
	t.serverNow = raw.ServerNow
	return nil
}
