package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
)

// AppendResult identifies a newly appended event
type AppendResult struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// storedEvent is the on-disk shape of an event entry
type storedEvent struct {
	Event     string          `json:"event"`
	User      *string         `json:"user"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// EventLog is the append-only `events` list. Entries are never updated or
// removed.
type EventLog struct {
	backend store.Backend
	clock   clockwork.Clock
}

// NewEventLog creates an event log on the given backend
func NewEventLog(backend store.Backend, clock clockwork.Clock) *EventLog {
	return &EventLog{
		backend: backend,
		clock:   clock,
	}
}

// Append stamps the event with the current UTC time and, when given, the
// acting user's name, then appends it in one backend call.
func (l *EventLog) Append(ctx context.Context, eventName string, body json.RawMessage, user *models.User) (AppendResult, error) {
	if eventName == "" {
		return AppendResult{}, fmt.Errorf("event name is required: %w", ErrInvalidArgument)
	}
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	if !json.Valid(body) {
		return AppendResult{}, fmt.Errorf("event body is not valid JSON: %w", ErrInvalidArgument)
	}

	entry := storedEvent{
		Event:     eventName,
		Timestamp: l.clock.Now().UTC(),
		Body:      body,
	}
	if user != nil {
		name := user.Username
		entry.User = &name
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to encode event: %w", err)
	}

	length, err := l.backend.ListAppend(ctx, store.KeyEvents, string(data))
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to append event %s: %w", eventName, err)
	}

	return AppendResult{
		ID:        length - 1,
		Timestamp: entry.Timestamp,
	}, nil
}

// ReadAll returns every event, oldest first
func (l *EventLog) ReadAll(ctx context.Context) ([]models.Event, error) {
	raw, err := l.backend.ListRange(ctx, store.KeyEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]models.Event, 0, len(raw))
	for i, v := range raw {
		var entry storedEvent
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, ErrDecode)
		}
		events = append(events, models.Event{
			ID:        int64(i),
			EventName: entry.Event,
			User:      entry.User,
			Timestamp: entry.Timestamp,
			Body:      entry.Body,
		})
	}
	return events, nil
}
