package launch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mcdev12/launchpad/go/internal/store"
)

// ActivityFlag is the `isActive` switch that marks the app as live.
// Writes are last-writer-wins.
type ActivityFlag struct {
	backend store.Backend
}

// NewActivityFlag creates the flag accessor
func NewActivityFlag(backend store.Backend) *ActivityFlag {
	return &ActivityFlag{backend: backend}
}

// Get returns true only when the stored value is exactly "true"
func (a *ActivityFlag) Get(ctx context.Context) (bool, error) {
	v, _, err := a.backend.GetString(ctx, store.KeyIsActive)
	if err != nil {
		return false, fmt.Errorf("failed to read activity flag: %w", err)
	}
	return v == "true", nil
}

func (a *ActivityFlag) Set(ctx context.Context, active bool) error {
	if err := a.backend.SetString(ctx, store.KeyIsActive, strconv.FormatBool(active)); err != nil {
		return fmt.Errorf("failed to write activity flag: %w", err)
	}
	return nil
}
