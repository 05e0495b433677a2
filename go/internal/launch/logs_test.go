package launch

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
)

func TestEventLogAppendReadAll(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC))
	l := NewEventLog(store.NewMemoryBackend(), clock)

	res, err := l.Append(ctx, "x", json.RawMessage(`{"a":1}`), nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if res.ID != 0 || !res.Timestamp.Equal(clock.Now()) {
		t.Fatalf("Append result = %+v", res)
	}

	events, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventName != "x" || string(ev.Body) != `{"a":1}` || ev.User != nil {
		t.Fatalf("event = %+v", ev)
	}

	encoded, _ := json.Marshal(ev)
	var wire struct {
		Timestamp string `json:"timestamp"`
	}
	json.Unmarshal(encoded, &wire)
	if _, err := time.Parse(time.RFC3339Nano, wire.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not ISO8601: %v", wire.Timestamp, err)
	}
}

func TestEventLogUserAndOrder(t *testing.T) {
	ctx := context.Background()
	l := NewEventLog(store.NewMemoryBackend(), clockwork.NewFakeClock())
	user := &models.User{Username: "flightdirector"}

	for _, name := range []string{"first", "second", "third"} {
		if _, err := l.Append(ctx, name, nil, user); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	events, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	for i, name := range []string{"first", "second", "third"} {
		if events[i].EventName != name || events[i].ID != int64(i) {
			t.Fatalf("event %d = %+v", i, events[i])
		}
		if events[i].User == nil || *events[i].User != "flightdirector" {
			t.Fatalf("event %d user = %v", i, events[i].User)
		}
		if string(events[i].Body) != "null" {
			t.Fatalf("event %d body = %s", i, events[i].Body)
		}
	}
}

func TestEventLogRejectsBadInput(t *testing.T) {
	l := NewEventLog(store.NewMemoryBackend(), clockwork.NewFakeClock())
	if _, err := l.Append(context.Background(), "", nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := l.Append(context.Background(), "x", json.RawMessage(`{`), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestStatusLogConcurrentAppendsGetDistinctIDs(t *testing.T) {
	const n = 100
	ctx := context.Background()
	l := NewStatusLog(store.NewMemoryBackend())
	countdown := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := l.Append(ctx, models.LaunchStatus{Text: "holding", Countdown: countdown})
			if err != nil {
				t.Errorf("Append: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if id != int64(i) {
			t.Fatalf("ids not {0..%d}: %v", n-1, ids)
		}
	}

	all, err := l.ReadAll(ctx)
	if err != nil || len(all) != n {
		t.Fatalf("ReadAll len=%d err=%v", len(all), err)
	}
	for i, s := range all {
		if s.StatusID != int64(i) {
			t.Fatalf("status %d has id %d", i, s.StatusID)
		}
	}
}

func TestStatusLogGetAndExtraFields(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	l := NewStatusLog(backend)
	countdown := time.Date(2026, 10, 20, 4, 0, 0, 0, time.UTC)

	id, err := l.Append(ctx, models.LaunchStatus{
		Text:      "Go for launch",
		Countdown: countdown,
		Timestamp: countdown.Add(-time.Hour),
		Extra:     map[string]json.RawMessage{"poll": json.RawMessage(`"range"`)},
	})
	if err != nil || id != 0 {
		t.Fatalf("Append = %d, %v", id, err)
	}

	got, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "Go for launch" || !got.Countdown.Equal(countdown) || string(got.Extra["poll"]) != `"range"` {
		t.Fatalf("Get = %+v", got)
	}

	raw, _, _ := backend.ListIndex(ctx, store.KeyLaunchStatuses, 0)
	var stored map[string]json.RawMessage
	json.Unmarshal([]byte(raw), &stored)
	if _, ok := stored["statusId"]; ok {
		t.Fatalf("stored entry must not embed statusId: %s", raw)
	}

	if _, err := l.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Get(ctx, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusLogDecodeError(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	backend.ListAppend(ctx, store.KeyLaunchStatuses, "garbage")
	l := NewStatusLog(backend)

	if _, err := l.ReadAll(ctx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
