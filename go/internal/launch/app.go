package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
	"github.com/rs/zerolog/log"
)

// StatusInput is what a client submits when posting a status
type StatusInput struct {
	Text      string                     `json:"text"`
	Countdown time.Time                  `json:"countdown"`
	Timestamp *time.Time                 `json:"timestamp,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
}

// Snapshot is the full state a viewer fetches on (re)connect
type Snapshot struct {
	IsActive bool                       `json:"isActive"`
	Launch   map[string]json.RawMessage `json:"launch"`
	Statuses []models.LaunchStatus      `json:"statuses"`
}

// App is the launch application: role checks, store writes and
// notification of every committed mutation.
type App struct {
	state    *StateStore
	events   *EventLog
	statuses *StatusLog
	active   *ActivityFlag
	notifier Notifier
	clock    clockwork.Clock
}

// NewApp wires the stores on a shared backend
func NewApp(backend store.Backend, notifier Notifier, clock clockwork.Clock) *App {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &App{
		state:    NewStateStore(backend),
		events:   NewEventLog(backend, clock),
		statuses: NewStatusLog(backend),
		active:   NewActivityFlag(backend),
		notifier: notifier,
		clock:    clock,
	}
}

// SetNotifier replaces the notifier. Used when the relay is created after the app.
func (a *App) SetNotifier(n Notifier) {
	a.notifier = n
}

// State exposes the underlying launch state store
func (a *App) State() *StateStore { return a.state }

// EventLog exposes the underlying event log
func (a *App) EventLog() *EventLog { return a.events }

// StatusLog exposes the underlying status log
func (a *App) StatusLog() *StatusLog { return a.statuses }

// PostStatus appends a launch status. Requires the privileged role.
func (a *App) PostStatus(ctx context.Context, actor models.Actor, in StatusInput) (models.LaunchStatus, error) {
	if err := requireRole(actor, models.RolePrivileged); err != nil {
		return models.LaunchStatus{}, err
	}
	if in.Countdown.IsZero() {
		return models.LaunchStatus{}, fmt.Errorf("status countdown is required: %w", ErrInvalidArgument)
	}

	status := models.LaunchStatus{
		Text:      in.Text,
		Countdown: in.Countdown.UTC(),
		Timestamp: a.clock.Now().UTC(),
		Extra:     in.Extra,
	}
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		status.Timestamp = in.Timestamp.UTC()
	}

	id, err := a.statuses.Append(ctx, status)
	if err != nil {
		return models.LaunchStatus{}, err
	}
	status.StatusID = id

	log.Info().
		Int64("status_id", id).
		Str("user", usernameOf(actor)).
		Msg("launch status posted")

	a.notify(ctx, KindLaunchStatus, status)
	a.logEvent(ctx, actor, models.EventAppStatus, map[string]any{"statusId": id})
	return status, nil
}

// UpdateLaunch merges fields into the launch state. Requires the moderator role.
func (a *App) UpdateLaunch(ctx context.Context, actor models.Actor, fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if err := requireRole(actor, models.RoleModerator); err != nil {
		return nil, err
	}

	stored, err := a.state.Set(ctx, fields)
	if err != nil {
		return nil, err
	}

	a.notify(ctx, KindLaunch, stored)
	a.logEvent(ctx, actor, models.EventLaunchUpdated, stored)
	return stored, nil
}

// SetActive flips the app activity flag. Requires the moderator role.
func (a *App) SetActive(ctx context.Context, actor models.Actor, active bool) error {
	if err := requireRole(actor, models.RoleModerator); err != nil {
		return err
	}
	if err := a.active.Set(ctx, active); err != nil {
		return err
	}

	a.notify(ctx, KindAppActive, map[string]bool{"isActive": active})
	a.logEvent(ctx, actor, models.EventAppActive, map[string]bool{"isActive": active})
	return nil
}

// RequestStatusEdit records an edit request for moderation. The status itself
// is never changed. Requires the privileged role.
func (a *App) RequestStatusEdit(ctx context.Context, actor models.Actor, statusID int64, text string) (AppendResult, error) {
	if err := requireRole(actor, models.RolePrivileged); err != nil {
		return AppendResult{}, err
	}
	if text == "" {
		return AppendResult{}, fmt.Errorf("replacement text is required: %w", ErrInvalidArgument)
	}
	if _, err := a.statuses.Get(ctx, statusID); err != nil {
		return AppendResult{}, err
	}

	return a.appendEvent(ctx, actor, models.EventStatusEditRequested, map[string]any{
		"statusId": statusID,
		"text":     text,
	})
}

// RequestStatusDelete records a delete request for moderation. Requires the moderator role.
func (a *App) RequestStatusDelete(ctx context.Context, actor models.Actor, statusID int64) (AppendResult, error) {
	if err := requireRole(actor, models.RoleModerator); err != nil {
		return AppendResult{}, err
	}
	if _, err := a.statuses.Get(ctx, statusID); err != nil {
		return AppendResult{}, err
	}

	return a.appendEvent(ctx, actor, models.EventStatusDeleteRequested, map[string]any{
		"statusId": statusID,
	})
}

// Snapshot returns the state a viewer needs to catch up after (re)connecting
func (a *App) Snapshot(ctx context.Context) (*Snapshot, error) {
	active, err := a.active.Get(ctx)
	if err != nil {
		return nil, err
	}
	launch, err := a.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := a.statuses.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		IsActive: active,
		Launch:   launch,
		Statuses: statuses,
	}, nil
}

// Ping checks the backend answers a read
func (a *App) Ping(ctx context.Context) error {
	_, err := a.active.Get(ctx)
	return err
}

// Status returns a single status by id
func (a *App) Status(ctx context.Context, statusID int64) (models.LaunchStatus, error) {
	return a.statuses.Get(ctx, statusID)
}

// Events returns the full event log. Requires the moderator role.
func (a *App) Events(ctx context.Context, actor models.Actor) ([]models.Event, error) {
	if err := requireRole(actor, models.RoleModerator); err != nil {
		return nil, err
	}
	return a.events.ReadAll(ctx)
}

func (a *App) appendEvent(ctx context.Context, actor models.Actor, name string, body any) (AppendResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to encode event body: %w", err)
	}

	res, err := a.events.Append(ctx, name, data, actor.User)
	if err != nil {
		return AppendResult{}, err
	}

	a.notify(ctx, KindEvent, models.Event{
		ID:        res.ID,
		EventName: name,
		User:      actor.Username(),
		Timestamp: res.Timestamp,
		Body:      data,
	})
	return res, nil
}

// logEvent records an audit event for a mutation that has already been
// committed; failures are logged but do not fail the mutation.
func (a *App) logEvent(ctx context.Context, actor models.Actor, name string, body any) {
	if _, err := a.appendEvent(ctx, actor, name, body); err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to log event")
	}
}

// notify hands a committed mutation to the notifier. Delivery is best-effort,
// so a failure is logged and never fails the operation.
func (a *App) notify(ctx context.Context, kind Kind, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to encode notification")
		return
	}

	n := Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: a.clock.Now().UTC(),
		Payload:   data,
	}
	if err := a.notifier.Notify(ctx, n); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to notify")
	}
}

func requireRole(actor models.Actor, role models.Role) error {
	if !actor.Roles.Has(role) {
		return fmt.Errorf("%s role required: %w", role, ErrForbidden)
	}
	return nil
}

func usernameOf(actor models.Actor) string {
	if actor.User == nil {
		return ""
	}
	return actor.User.Username
}
