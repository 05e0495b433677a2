package models

import (
	"encoding/json"
	"time"
)

// LaunchStatus is a status snapshot posted during a launch. StatusID is the
// entry's position in the status log and is never stored inside the entry.
type LaunchStatus struct {
	StatusID  int64                      `json:"statusId"`
	Text      string                     `json:"text"`
	Countdown time.Time                  `json:"countdown"`
	Timestamp time.Time                  `json:"timestamp"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// reserved status fields that cannot be overridden by Extra
var statusFields = []string{"statusId", "text", "countdown", "timestamp"}

// MarshalJSON flattens Extra next to the fixed status fields
func (s LaunchStatus) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+len(statusFields))
	for k, v := range s.Extra {
		out[k] = v
	}

	fixed := map[string]any{
		"statusId":  s.StatusID,
		"text":      s.Text,
		"countdown": s.Countdown,
		"timestamp": s.Timestamp,
	}
	for k, v := range fixed {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits unknown fields into Extra
func (s *LaunchStatus) UnmarshalJSON(data []byte) error {
	type plain struct {
		StatusID  int64     `json:"statusId"`
		Text      string    `json:"text"`
		Countdown time.Time `json:"countdown"`
		Timestamp time.Time `json:"timestamp"`
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range statusFields {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}

	*s = LaunchStatus{
		StatusID:  p.StatusID,
		Text:      p.Text,
		Countdown: p.Countdown,
		Timestamp: p.Timestamp,
		Extra:     all,
	}
	return nil
}
