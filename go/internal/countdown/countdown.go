package countdown

import (
	"fmt"
	"strings"
	"time"
)

// Unit is a single component of a countdown breakdown
type Unit struct {
	Label     string `json:"label"`
	Seconds   uint64 `json:"seconds"` // Size of one unit in seconds
	Magnitude uint64 `json:"magnitude"`
}

// Breakdown is a mixed-radix decomposition of a duration, largest unit first
type Breakdown []Unit

// units lists the decomposition radixes, largest first
var units = []struct {
	label   string
	seconds uint64
}{
	{"days", 86400},
	{"hours", 3600},
	{"minutes", 60},
	{"seconds", 1},
}

// Calculate decomposes the absolute value of durationSeconds into days, hours,
// minutes and seconds. The sign is dropped; callers decide between T- and T+.
func Calculate(durationSeconds int64) Breakdown {
	remaining := abs(durationSeconds)

	breakdown := make(Breakdown, 0, len(units))
	for _, u := range units {
		breakdown = append(breakdown, Unit{
			Label:     u.label,
			Seconds:   u.seconds,
			Magnitude: remaining / u.seconds,
		})
		remaining %= u.seconds
	}
	return breakdown
}

// Seconds reconstructs the absolute duration the breakdown was built from
func (b Breakdown) Seconds() uint64 {
	var total uint64
	for _, u := range b {
		total += u.Magnitude * u.Seconds
	}
	return total
}

// IsZero reports whether every magnitude is zero
func (b Breakdown) IsZero() bool {
	for _, u := range b {
		if u.Magnitude != 0 {
			return false
		}
	}
	return true
}

// Format renders a duration to launch as `T-6d 4h` or `T+8s`. Only the first
// non-zero unit and the unit after it are shown. A duration of zero or less
// is past T-0 and gets the T+ prefix.
func Format(durationSeconds int64) string {
	prefix := "T-"
	if durationSeconds <= 0 {
		prefix = "T+"
	}

	breakdown := Calculate(durationSeconds)
	if breakdown.IsZero() {
		return prefix + "0s"
	}

	var parts []string
	for _, u := range breakdown {
		if len(parts) == 0 && u.Magnitude == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", u.Magnitude, u.Label[:1]))
		if len(parts) == 2 {
			break
		}
	}
	return prefix + strings.Join(parts, " ")
}

// Between returns the whole seconds from at until countdown. The result is
// negative once at is past countdown.
func Between(countdown, at time.Time) int64 {
	return int64(countdown.Sub(at) / time.Second)
}

// abs returns |v| as a uint64 so that math.MinInt64 does not overflow
func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
