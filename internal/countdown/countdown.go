// Package countdown tracks the time left until an access link or viewing
// grant expires.
package countdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const DefaultPeriod = time.Second

var (
	ErrAlreadyStarted = errors.New("countdown already started")
	ErrStopped        = errors.New("countdown stopped")
)

// Remaining is the time left split into display units. All fields are zero
// once Expired is set.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// Compute returns what is left of target as seen at now. Sub-second
// remainders are truncated.
func Compute(target, now time.Time) Remaining {
	left := target.Sub(now)
	if left <= 0 {
		return Remaining{Expired: true}
	}

	total := int64(left / time.Second)
	return Remaining{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}

func (r Remaining) Duration() time.Duration {
	return time.Duration(r.Days)*24*time.Hour +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute +
		time.Duration(r.Seconds)*time.Second
}

func (r Remaining) String() string {
	if r.Expired {
		return "expired"
	}
	if r.Days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", r.Days, r.Hours, r.Minutes, r.Seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", r.Hours, r.Minutes, r.Seconds)
}

type Option func(*Countdown)

func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

func WithPeriod(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.period = d
		}
	}
}

// Countdown recomputes Remaining on a fixed period from a single goroutine.
// It is started at most once and stopped at most once; the ticker is released
// when the target passes, Stop is called, or the start context ends.
type Countdown struct {
	target time.Time
	now    func() time.Time
	period time.Duration

	mu       sync.Mutex
	started  bool
	stopped  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(target time.Time, opts ...Option) *Countdown {
	c := &Countdown{
		target: target,
		now:    time.Now,
		period: DefaultPeriod,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Countdown) Target() time.Time {
	return c.target
}

func (c *Countdown) Current() Remaining {
	return Compute(c.target, c.now())
}

// Start reports the current value to onTick right away, then once per period
// until expiry. The expired value is delivered exactly once. A non-nil error
// from onTick ends the loop.
func (c *Countdown) Start(ctx context.Context, onTick func(Remaining) error) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	first := c.Current()
	if err := onTick(first); err != nil || first.Expired {
		close(c.done)
		return nil
	}

	go c.run(ctx, onTick)
	return nil
}

func (c *Countdown) run(ctx context.Context, onTick func(Remaining) error) {
	defer close(c.done)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			r := c.Current()
			if err := onTick(r); err != nil || r.Expired {
				return
			}
		}
	}
}

// Stop ends the loop. It is safe to call more than once and from onTick.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		started := c.started
		c.mu.Unlock()

		close(c.stop)
		if !started {
			close(c.done)
		}
	})
}

// Done is closed once the loop has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
