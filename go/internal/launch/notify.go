package launch

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies what a Notification carries
type Kind string

const (
	KindLaunchStatus Kind = "launchStatus"
	KindLaunch       Kind = "launch"
	KindAppActive    Kind = "appActive"
	KindEvent        Kind = "event"
	KindCountdown    Kind = "countdown"
)

// Notification is a committed mutation to fan out to connected viewers
type Notification struct {
	ID        string          `json:"id" msgpack:"id"`
	Kind      Kind            `json:"kind" msgpack:"kind"`
	Timestamp time.Time       `json:"timestamp" msgpack:"timestamp"`
	Payload   json.RawMessage `json:"payload" msgpack:"payload"`
}

// Notifier receives every successful mutation
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NopNotifier discards notifications
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
