package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshInterval is how often displayed relative times are recomputed
const DefaultRefreshInterval = 5 * time.Second

// Refresher runs a recompute function immediately and then on every tick
// until it is stopped or its context is cancelled.
type Refresher struct {
	clock    clockwork.Clock
	interval time.Duration
	fn       func(ctx context.Context, now time.Time)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRefresher creates a refresher. fn receives a context that is cancelled
// when the refresher stops. A non-positive interval uses DefaultRefreshInterval.
func NewRefresher(clock clockwork.Clock, interval time.Duration, fn func(ctx context.Context, now time.Time)) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

// Start begins refreshing in a background goroutine. Calling Start on a
// running refresher is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	// Create the ticker before returning so fake clocks see it registered
	ticker := r.clock.NewTicker(r.interval)
	go r.run(ctx, ticker, r.done)
}

func (r *Refresher) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	r.fn(ctx, r.clock.Now())
	for {
		select {
		case <-ctx.Done():
			log.Debug().Dur("interval", r.interval).Msg("refresher stopped")
			return
		case now := <-ticker.Chan():
			r.fn(ctx, now)
		}
	}
}

// Stop cancels the refresher and waits for its goroutine to exit. Safe to call
// more than once and on a refresher that was never started.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}
