// Package store provides the shared key-value/list storage that launch state,
// statuses and events are persisted in. Every Backend exposes only operations
// that are atomic in the underlying store; callers must not build
// read-modify-write sequences on top of them.
package store

import (
	"context"
	"errors"
)

// Keys used by the launch application
const (
	KeyIsActive       = "isActive"
	KeyLaunch         = "launch"
	KeyLaunchStatuses = "launchStatuses"
	KeyEvents         = "events"
)

// ErrClosed is returned by backends used after Close
var ErrClosed = errors.New("store: backend closed")

// Backend is the storage capability shared by all gateway processes
type Backend interface {
	// GetString returns the value at key and whether it exists
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error

	// HashGetAll returns every field of the hash at key, empty when missing
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	// HashSet writes all fields in one atomic operation, leaving other fields untouched
	HashSet(ctx context.Context, key string, fields map[string]string) error

	// ListAppend appends value and returns the list length including the new
	// entry. The new entry's 0-based position is the returned length minus one.
	ListAppend(ctx context.Context, key, value string) (int64, error)
	ListRange(ctx context.Context, key string) ([]string, error)
	ListIndex(ctx context.Context, key string, index int64) (string, bool, error)

	Close() error
}
