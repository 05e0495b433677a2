package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/countdown"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/rs/zerolog/log"
)

// Countdown synchronization
//
// Clients render the countdown locally from the launch "countdown" field.
// The server periodically broadcasts its own view so drifting clocks can
// correct themselves. Each instance computes this independently, so it goes
// straight to the local router and never through the relay.

// CountdownPayload is the data of a countdown message
type CountdownPayload struct {
	ServerTime time.Time `json:"serverTime"`
	Countdown  time.Time `json:"countdown"`
	Seconds    int64     `json:"seconds"`
	Display    string    `json:"display"`
}

// TimerSync broadcasts the server's countdown to every room on an interval
type TimerSync struct {
	state     *launch.StateStore
	sink      StatusEventSink
	field     string
	refresher *countdown.Refresher
}

// NewTimerSync creates a countdown broadcaster reading the given launch field
func NewTimerSync(state *launch.StateStore, sink StatusEventSink, clock clockwork.Clock, field string, interval time.Duration) *TimerSync {
	ts := &TimerSync{state: state, sink: sink, field: field}
	ts.refresher = countdown.NewRefresher(clock, interval, ts.tick)
	return ts
}

// Start begins broadcasting until ctx is cancelled or Stop is called
func (ts *TimerSync) Start(ctx context.Context) {
	ts.refresher.Start(ctx)
}

// Stop halts broadcasting
func (ts *TimerSync) Stop() {
	ts.refresher.Stop()
}

func (ts *TimerSync) tick(ctx context.Context, now time.Time) {
	payload, ok, err := ts.compute(ctx, now)
	if err != nil {
		log.Warn().Err(err).Str("field", ts.field).Msg("failed to compute countdown")
		return
	}
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode countdown")
		return
	}
	if err := ts.sink.OnStatusEvent(ctx, launch.Notification{
		ID:        uuid.New().String(),
		Kind:      launch.KindCountdown,
		Timestamp: now.UTC(),
		Payload:   data,
	}); err != nil {
		log.Error().Err(err).Msg("failed to broadcast countdown")
	}
}

// compute reads the countdown target. It reports false when none is set.
func (ts *TimerSync) compute(ctx context.Context, now time.Time) (CountdownPayload, bool, error) {
	raw, err := ts.state.GetField(ctx, ts.field)
	if errors.Is(err, launch.ErrNotFound) {
		return CountdownPayload{}, false, nil
	}
	if err != nil {
		return CountdownPayload{}, false, err
	}

	var target time.Time
	if err := json.Unmarshal(raw, &target); err != nil {
		return CountdownPayload{}, false, err
	}

	seconds := countdown.Between(target, now)
	return CountdownPayload{
		ServerTime: now.UTC(),
		Countdown:  target.UTC(),
		Seconds:    seconds,
		Display:    countdown.Format(seconds),
	}, true, nil
}
