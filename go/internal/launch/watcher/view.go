package watcher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcdev12/launchpad/go/internal/countdown"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/launch/gateway"
	"github.com/mcdev12/launchpad/go/internal/models"
)

// View is a viewer's local copy of the launch, kept current by applying
// server messages
type View struct {
	mu       sync.RWMutex
	active   bool
	launch   map[string]json.RawMessage
	statuses map[int64]models.LaunchStatus
	field    string
	loc      *time.Location
}

// NewView creates an empty view. field names the launch field holding the
// countdown target.
func NewView(field string, loc *time.Location) *View {
	if loc == nil {
		loc = time.Local
	}
	return &View{
		launch:   make(map[string]json.RawMessage),
		statuses: make(map[int64]models.LaunchStatus),
		field:    field,
		loc:      loc,
	}
}

// Reset replaces the view with a snapshot
func (v *View) Reset(s *launch.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.active = s.IsActive
	v.launch = make(map[string]json.RawMessage, len(s.Launch))
	for k, val := range s.Launch {
		v.launch[k] = val
	}
	v.statuses = make(map[int64]models.LaunchStatus, len(s.Statuses))
	for _, st := range s.Statuses {
		v.statuses[st.StatusID] = st
	}
}

// Apply folds one server message into the view. Messages that carry no
// launch state are ignored.
func (v *View) Apply(msg gateway.OutboundMessage) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch launch.Kind(msg.Type) {
	case launch.KindLaunchStatus:
		var st models.LaunchStatus
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			return fmt.Errorf("decode launch status: %w", err)
		}
		v.statuses[st.StatusID] = st

	case launch.KindLaunch:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(msg.Data, &fields); err != nil {
			return fmt.Errorf("decode launch fields: %w", err)
		}
		for k, val := range fields {
			v.launch[k] = val
		}

	case launch.KindAppActive:
		var body struct {
			IsActive bool `json:"isActive"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			return fmt.Errorf("decode activity: %w", err)
		}
		v.active = body.IsActive
	}
	return nil
}

// Statuses returns the statuses newest first
func (v *View) Statuses() []models.LaunchStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]models.LaunchStatus, 0, len(v.statuses))
	for _, st := range v.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusID > out[j].StatusID })
	return out
}

// Render draws the view as of now
func (v *View) Render(now time.Time) string {
	statuses := v.Statuses()

	v.mu.RLock()
	defer v.mu.RUnlock()

	var b strings.Builder
	if name, ok := v.stringField("name"); ok {
		fmt.Fprintf(&b, "%s\n", name)
	}
	if !v.active {
		b.WriteString("(launch coverage inactive)\n")
	}

	var target time.Time
	if raw, ok := v.launch[v.field]; ok && json.Unmarshal(raw, &target) == nil {
		fmt.Fprintf(&b, "%s  (%s)\n",
			countdown.Format(countdown.Between(target, now)),
			countdown.LocalTime(target, v.loc))
	}

	for _, st := range statuses {
		fmt.Fprintf(&b, "[%s] %s  %s\n",
			countdown.Format(countdown.Between(st.Countdown, st.Timestamp)),
			st.Text,
			countdown.Relative(st.Timestamp, now))
	}
	return b.String()
}

func (v *View) stringField(name string) (string, bool) {
	raw, ok := v.launch[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
