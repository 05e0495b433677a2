package countdown

import (
	"time"

	"github.com/dustin/go-humanize"
)

// LocalTimeLayout renders like `3:04PM 2 January MST`
const LocalTimeLayout = "3:04PM 2 January MST"

// Relative returns a humanized distance between t and now, e.g. "3 minutes ago"
func Relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// LocalTime formats t in the given location. A nil location means UTC.
func LocalTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LocalTimeLayout)
}
