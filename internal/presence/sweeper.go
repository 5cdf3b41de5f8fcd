package presence

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Sweeper periodically removes stale presence records. It is owned by the
// process lifecycle: started at boot, stopped on shutdown. A tick is skipped
// when the previous sweep is still in flight.
type Sweeper struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
	running  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(store Store, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
}

// RunOnce executes a single sweep. Exposed so it can be driven directly in
// tests instead of waiting on the ticker.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("presence sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	removed, err := s.store.Sweep(ctx, s.maxAge)
	if err != nil {
		log.Printf("presence sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("presence sweep removed %d stale records", removed)
	}
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
