// Package approver runs the background sweep that auto-approves pending
// claims once their delay has elapsed.
package approver

import (
	"context"
	"log/slog"
	"time"
)

// Approver approves due claims. *donation.Manager satisfies it.
type Approver interface {
	ApproveDue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper calls ApproveDue on a fixed interval.
type Sweeper struct {
	approver Approver
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Sweeper. A non-positive interval defaults to one second.
func New(a Approver, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{approver: a, interval: interval, log: log, now: time.Now}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("approval sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("approval sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine. The returned stop cancels it
// and blocks until any in-flight sweep has returned, so callers can close the
// store afterwards.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Sweep runs a single pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.approver.ApproveDue(ctx, s.now())
	if err != nil {
		s.log.Error("auto-approval sweep failed", "approved", n, "error", err)
	} else if n > 0 {
		s.log.Info("auto-approved claims", "count", n)
	}
	return n
}
