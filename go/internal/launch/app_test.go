package launch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []Kind
	last  map[Kind]Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[Kind]Notification)
	}
	r.kinds = append(r.kinds, n.Kind)
	r.last[n.Kind] = n
	return nil
}

var (
	privileged = models.Actor{
		User:  &models.User{Username: "reporter"},
		Roles: models.NewRoleSet(models.RolePrivileged),
	}
	moderator = models.Actor{
		User:  &models.User{Username: "mod", Privileges: []string{models.PrivilegeModerator}},
		Roles: models.NewRoleSet(models.RolePrivileged, models.RoleModerator),
	}
)

func newTestApp() (*App, *recordingNotifier) {
	n := &recordingNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	return NewApp(store.NewMemoryBackend(), n, clock), n
}

func TestPostStatusRequiresPrivileged(t *testing.T) {
	app, n := newTestApp()
	in := StatusInput{Text: "T-10 and holding", Countdown: time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)}

	if _, err := app.PostStatus(context.Background(), models.Guest(), in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("guest: expected ErrForbidden, got %v", err)
	}
	if len(n.kinds) != 0 {
		t.Fatalf("rejected post must not notify: %v", n.kinds)
	}

	status, err := app.PostStatus(context.Background(), privileged, in)
	if err != nil {
		t.Fatalf("PostStatus: %v", err)
	}
	if status.StatusID != 0 || status.Timestamp.IsZero() {
		t.Fatalf("status = %+v", status)
	}

	var broadcast models.LaunchStatus
	if err := json.Unmarshal(n.last[KindLaunchStatus].Payload, &broadcast); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if broadcast.Text != in.Text || broadcast.StatusID != 0 {
		t.Fatalf("notified status = %+v", broadcast)
	}
	if _, ok := n.last[KindEvent]; !ok {
		t.Fatalf("expected an appStatus event notification, got %v", n.kinds)
	}
}

func TestPostStatusValidation(t *testing.T) {
	app, _ := newTestApp()
	ctx := context.Background()

	if _, err := app.PostStatus(ctx, privileged, StatusInput{Text: "no countdown"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := app.PostStatus(ctx, privileged, StatusInput{Countdown: time.Now()}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestUpdateLaunchRequiresModerator(t *testing.T) {
	app, n := newTestApp()
	ctx := context.Background()
	fields := map[string]json.RawMessage{"vehicle": json.RawMessage(`"Electron"`)}

	if _, err := app.UpdateLaunch(ctx, privileged, fields); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := app.UpdateLaunch(ctx, moderator, fields); err != nil {
		t.Fatalf("UpdateLaunch: %v", err)
	}
	if string(n.last[KindLaunch].Payload) != `{"vehicle":"Electron"}` {
		t.Fatalf("launch notification = %s", n.last[KindLaunch].Payload)
	}

	snap, err := app.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if string(snap.Launch["vehicle"]) != `"Electron"` {
		t.Fatalf("snapshot launch = %v", snap.Launch)
	}
}

func TestSetActive(t *testing.T) {
	app, n := newTestApp()
	ctx := context.Background()

	if err := app.SetActive(ctx, privileged, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := app.SetActive(ctx, moderator, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	snap, _ := app.Snapshot(ctx)
	if !snap.IsActive {
		t.Fatalf("expected active snapshot")
	}
	if string(n.last[KindAppActive].Payload) != `{"isActive":true}` {
		t.Fatalf("appActive notification = %s", n.last[KindAppActive].Payload)
	}
}

func TestEditAndDeleteRequestsAreLoggedNotApplied(t *testing.T) {
	app, _ := newTestApp()
	ctx := context.Background()
	posted, err := app.PostStatus(ctx, privileged, StatusInput{Text: "original", Countdown: time.Now()})
	if err != nil {
		t.Fatalf("PostStatus: %v", err)
	}

	if _, err := app.RequestStatusEdit(ctx, privileged, 42, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := app.RequestStatusEdit(ctx, privileged, posted.StatusID, "edited"); err != nil {
		t.Fatalf("RequestStatusEdit: %v", err)
	}
	if _, err := app.RequestStatusDelete(ctx, privileged, posted.StatusID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := app.RequestStatusDelete(ctx, moderator, posted.StatusID); err != nil {
		t.Fatalf("RequestStatusDelete: %v", err)
	}

	status, err := app.Status(ctx, posted.StatusID)
	if err != nil || status.Text != "original" {
		t.Fatalf("status must be unchanged: %+v %v", status, err)
	}

	if _, err := app.Events(ctx, privileged); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	events, err := app.Events(ctx, moderator)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var names []string
	for _, ev := range events {
		names = append(names, ev.EventName)
	}
	want := []string{models.EventAppStatus, models.EventStatusEditRequested, models.EventStatusDeleteRequested}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
}

func TestNotifierFailureDoesNotFailWrite(t *testing.T) {
	failing := NotifierFunc(func(context.Context, Notification) error { return errors.New("relay down") })
	app := NewApp(store.NewMemoryBackend(), failing, clockwork.NewFakeClock())

	if _, err := app.PostStatus(context.Background(), privileged, StatusInput{Text: "x", Countdown: time.Now()}); err != nil {
		t.Fatalf("PostStatus: %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		nil:                              "",
		ErrInvalidArgument:               "invalid_argument",
		errors.Join(ErrNotFound):         "not_found",
		ErrDecode:                        "decode_error",
		ErrForbidden:                     "forbidden",
		errors.New("connection refused"): "internal",
	}
	for err, want := range cases {
		if got := ErrorCode(err); got != want {
			t.Errorf("ErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
