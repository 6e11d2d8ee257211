package store

import (
	"encoding/json"
	"fmt"
)

// TatamiStream is a live-stream video bound to a tatami.
type TatamiStream struct {
	Video  string `json:"video"` // draw | tatami | finals | decorations | other
	Tatami int    `json:"tatami,omitempty"`
	Name   string `json:"name,omitempty"`
	ID     string `json:"id"`
}

// VideoSection is a descriptive section entry between streams.
type VideoSection struct {
	Section string `json:"section"` // day | eliminations | finals | day_eliminations | day_finals
	Day     int    `json:"day,omitempty"`
	Name    string `json:"name,omitempty"`
}

// VideoItem is a sum of the two video list variants. Exactly one of Stream
// and Section is set; the variant is fixed when the item is decoded.
type VideoItem struct {
	Stream  *TatamiStream
	Section *VideoSection
}

func (v VideoItem) MarshalJSON() ([]byte, error) {
	switch {
	case v.Stream != nil:
		return json.Marshal(v.Stream)
	case v.Section != nil:
		return json.Marshal(v.Section)
	default:
		return nil, fmt.Errorf("video item has no variant")
	}
}

func (v *VideoItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if _, ok := raw["id"]; ok {
		var stream TatamiStream
		if err := json.Unmarshal(data, &stream); err != nil {
			return err
		}
		v.Stream = &stream
		v.Section = nil
		return nil
	}

	var section VideoSection
	if err := json.Unmarshal(data, &section); err != nil {
		return err
	}
	v.Section = &section
	v.Stream = nil
	return nil
}
