package service

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper releases expired rate limit state. *ratelimit.MemoryStore
// implements it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Janitor periodically evicts elapsed rate limit buckets so that memory
// stays proportional to recently active clients.
type Janitor struct {
	Sweeper  Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	// Lifecycle channels, nil while stopped.
	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewJanitor creates a Janitor. If interval is 0 or negative, defaults to
// one minute, the shortest window.
func NewJanitor(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Janitor{
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
	}
}

// Start begins the background worker. Call Stop to shut it down. Starting a
// running janitor is a no-op; a stopped one may be started again.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopCh != nil {
		return
	}

	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	go j.run(j.stopCh, j.doneCh)
	j.Logger.Info("rate limit janitor started", "interval", j.Interval)
}

// Stop shuts down the worker and waits for an in-progress sweep. It is a
// no-op when the worker is not running.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopCh == nil {
		return
	}

	close(j.stopCh)
	<-j.doneCh
	j.stopCh, j.doneCh = nil, nil
	j.Logger.Info("rate limit janitor stopped")
}

func (j *Janitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep runs one eviction pass and returns the number of evicted buckets.
func (j *Janitor) Sweep() int {
	removed := j.Sweeper.Sweep(time.Now())
	if removed > 0 {
		j.Logger.Debug("rate limit buckets evicted", "removed", removed)
	}
	return removed
}
