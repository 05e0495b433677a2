package models

import (
	"encoding/json"
	"time"
)

// Event is an entry in the append-only application event log
type Event struct {
	ID        int64           `json:"id"`
	EventName string          `json:"event"`
	User      *string         `json:"user"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// Event names written by the launch app
const (
	EventAppStatus             = "appStatus"
	EventLaunchUpdated         = "launch:updated"
	EventAppActive             = "app:active"
	EventStatusEditRequested   = "status:editRequested"
	EventStatusDeleteRequested = "status:deleteRequested"
)
