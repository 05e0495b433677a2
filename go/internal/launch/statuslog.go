package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
)

// StatusLog is the append-only `launchStatuses` list. A status id is the
// entry's position in the list, taken from the length the backend returns for
// the append itself, so concurrent appenders never share an id.
type StatusLog struct {
	backend store.Backend
}

// NewStatusLog creates a status log on the given backend
func NewStatusLog(backend store.Backend) *StatusLog {
	return &StatusLog{backend: backend}
}

// Append stores the status and returns its assigned id
func (l *StatusLog) Append(ctx context.Context, status models.LaunchStatus) (int64, error) {
	if strings.TrimSpace(status.Text) == "" {
		return 0, fmt.Errorf("status text is required: %w", ErrInvalidArgument)
	}
	for k, v := range status.Extra {
		if !json.Valid(v) {
			return 0, fmt.Errorf("status field %q is not valid JSON: %w", k, ErrInvalidArgument)
		}
	}

	// The id is positional; never persist it inside the entry
	data, err := json.Marshal(stripID(status))
	if err != nil {
		return 0, fmt.Errorf("failed to encode status: %w", err)
	}

	length, err := l.backend.ListAppend(ctx, store.KeyLaunchStatuses, string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to append status: %w", err)
	}
	return length - 1, nil
}

// ReadAll returns every status ordered by id
func (l *StatusLog) ReadAll(ctx context.Context) ([]models.LaunchStatus, error) {
	raw, err := l.backend.ListRange(ctx, store.KeyLaunchStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to read statuses: %w", err)
	}

	statuses := make([]models.LaunchStatus, 0, len(raw))
	for i, v := range raw {
		status, err := decodeStatus(int64(i), v)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Get returns a single status by id
func (l *StatusLog) Get(ctx context.Context, statusID int64) (models.LaunchStatus, error) {
	v, ok, err := l.backend.ListIndex(ctx, store.KeyLaunchStatuses, statusID)
	if err != nil {
		return models.LaunchStatus{}, fmt.Errorf("failed to read status %d: %w", statusID, err)
	}
	if !ok {
		return models.LaunchStatus{}, fmt.Errorf("status %d: %w", statusID, ErrNotFound)
	}
	return decodeStatus(statusID, v)
}

func decodeStatus(id int64, raw string) (models.LaunchStatus, error) {
	var status models.LaunchStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return models.LaunchStatus{}, fmt.Errorf("status %d: %w", id, ErrDecode)
	}
	status.StatusID = id
	return status, nil
}

// stripID encodes the status without its statusId field
func stripID(status models.LaunchStatus) json.Marshaler {
	return statusWithoutID{status}
}

type statusWithoutID struct {
	models.LaunchStatus
}

func (s statusWithoutID) MarshalJSON() ([]byte, error) {
	data, err := s.LaunchStatus.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "statusId")
	return json.Marshal(fields)
}
