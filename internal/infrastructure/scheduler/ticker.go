package scheduler

import (
	"context"
	"time"

	"KnowledgeAgent/internal/ports"
)

// IntervalDriver fires a job on a fixed interval using time.Ticker.
type IntervalDriver struct {
	interval   time.Duration
	fireOnBoot bool
	stop       chan struct{}
}

var _ ports.TickDriver = (*IntervalDriver)(nil)

// NewIntervalDriver builds a driver with the given period. When fireOnBoot is
// set, the job also runs once immediately on Start.
func NewIntervalDriver(interval time.Duration, fireOnBoot bool) *IntervalDriver {
	return &IntervalDriver{interval: interval, fireOnBoot: fireOnBoot}
}

// Start begins ticking. Ticks that arrive while the job is still running are
// absorbed by the ticker channel, so slow jobs never stack.
func (d *IntervalDriver) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if d.stop != nil {
		return nil
	}

	d.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		if d.fireOnBoot {
			job(time.Now())
		}
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (d *IntervalDriver) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}
