package launch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/launchpad/go/internal/store"
)

// StateStore holds the current launch attributes as JSON values in the
// `launch` hash. Writes merge into the hash; nothing is ever removed.
type StateStore struct {
	backend store.Backend
}

// NewStateStore creates a launch state store on the given backend
func NewStateStore(backend store.Backend) *StateStore {
	return &StateStore{backend: backend}
}

// Get returns every launch field. Values are validated as JSON on the way out.
func (s *StateStore) Get(ctx context.Context) (map[string]json.RawMessage, error) {
	raw, err := s.backend.HashGetAll(ctx, store.KeyLaunch)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch state: %w", err)
	}

	out := make(map[string]json.RawMessage, len(raw))
	for field, v := range raw {
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("launch field %q: %w", field, ErrDecode)
		}
		out[field] = json.RawMessage(v)
	}
	return out, nil
}

// GetField returns a single decoded launch field
func (s *StateStore) GetField(ctx context.Context, field string) (json.RawMessage, error) {
	if field == "" {
		return nil, fmt.Errorf("field name is required: %w", ErrInvalidArgument)
	}

	v, ok, err := s.backend.HashGet(ctx, store.KeyLaunch, field)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch field %q: %w", field, err)
	}
	if !ok {
		return nil, fmt.Errorf("launch field %q: %w", field, ErrNotFound)
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("launch field %q: %w", field, ErrDecode)
	}
	return json.RawMessage(v), nil
}

// Set merges fields into the launch state with a single hash write and
// returns the compacted values that were stored.
func (s *StateStore) Set(ctx context.Context, fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("launch fields are required: %w", ErrInvalidArgument)
	}

	encoded := make(map[string]string, len(fields))
	stored := make(map[string]json.RawMessage, len(fields))
	for field, v := range fields {
		if field == "" {
			return nil, fmt.Errorf("empty launch field name: %w", ErrInvalidArgument)
		}
		compact, err := compactJSON(v)
		if err != nil {
			return nil, fmt.Errorf("launch field %q: %w", field, err)
		}
		encoded[field] = string(compact)
		stored[field] = compact
	}

	if err := s.backend.HashSet(ctx, store.KeyLaunch, encoded); err != nil {
		return nil, fmt.Errorf("failed to write launch state: %w", err)
	}
	return stored, nil
}

// compactJSON validates v and strips insignificant whitespace. JSON null is
// rejected so that a missing field is never confused with a null one.
func compactJSON(v json.RawMessage) (json.RawMessage, error) {
	if len(v) == 0 || !json.Valid(v) {
		return nil, fmt.Errorf("value is not valid JSON: %w", ErrInvalidArgument)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, fmt.Errorf("value is not valid JSON: %w", ErrInvalidArgument)
	}
	if buf.String() == "null" {
		return nil, fmt.Errorf("null values cannot be stored: %w", ErrInvalidArgument)
	}
	return json.RawMessage(buf.Bytes()), nil
}
