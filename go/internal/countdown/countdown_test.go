package countdown

import (
	"math"
	"testing"
	"time"
)

func TestCalculateReconstructsDuration(t *testing.T) {
	for _, d := range []int64{0, 1, 59, 60, 61, 3599, 3600, 86399, 86400, 90061, 1_000_000_007, math.MaxInt64} {
		b := Calculate(d)
		if got := b.Seconds(); got != uint64(d) {
			t.Fatalf("Calculate(%d).Seconds() = %d", d, got)
		}
		for i, u := range b {
			if i > 0 && u.Magnitude >= b[i-1].Seconds/u.Seconds {
				t.Fatalf("Calculate(%d): %s magnitude %d not reduced", d, u.Label, u.Magnitude)
			}
		}
	}
}

func TestCalculateZero(t *testing.T) {
	b := Calculate(0)
	if len(b) != 4 {
		t.Fatalf("expected 4 units, got %d", len(b))
	}
	if !b.IsZero() {
		t.Fatalf("expected all-zero breakdown, got %+v", b)
	}
}

func TestCalculateOrderAndSign(t *testing.T) {
	b := Calculate(-90061)
	want := []struct {
		label string
		mag   uint64
	}{{"days", 1}, {"hours", 1}, {"minutes", 1}, {"seconds", 1}}
	for i, w := range want {
		if b[i].Label != w.label || b[i].Magnitude != w.mag {
			t.Fatalf("unit %d = %+v, want %s=%d", i, b[i], w.label, w.mag)
		}
	}
}

func TestCalculateMinInt64(t *testing.T) {
	b := Calculate(math.MinInt64)
	if got := b.Seconds(); got != uint64(math.MaxInt64)+1 {
		t.Fatalf("Seconds() = %d", got)
	}
}

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		6*86400 + 4*3600 + 12: "T-6d 4h",
		6 * 86400:             "T-6d 0h",
		8:                     "T-8s",
		3*60 + 5:              "T-3m 5s",
		0:                     "T+0s",
		-3700:                 "T+1h 1m",
		-1:                    "T+1s",
	}
	for d, want := range cases {
		if got := Format(d); got != want {
			t.Errorf("Format(%d) = %q, want %q", d, got, want)
		}
	}
}

func TestBetween(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	if got := Between(at.Add(90*time.Second), at); got != 90 {
		t.Fatalf("Between = %d, want 90", got)
	}
	if got := Between(at.Add(-90*time.Second), at); got != -90 {
		t.Fatalf("Between = %d, want -90", got)
	}
}

func TestRelativeAndLocalTime(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	if got := Relative(now.Add(-3*time.Minute), now); got != "3 minutes ago" {
		t.Fatalf("Relative = %q", got)
	}
	if got := LocalTime(now.Add(-90*time.Minute), nil); got != "10:30AM 16 October UTC" {
		t.Fatalf("LocalTime = %q", got)
	}
}
