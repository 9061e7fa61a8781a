// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for everything that waits. Sleep returns early
// with ctx.Err() if the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Result int
const (
	Met Result = iota
	TimedOut
)

func (r Result) String() string {
	if r == Met {
		return "met"
	}
	return "timed out"
}

// Poll checks cond every interval until it holds or timeout has passed.
func Poll(ctx context.Context, c Clock, interval, timeout time.Duration, cond func() bool) (Result, error) {
	deadline := c.Now().Add(timeout)
	for {
		if cond() {
			return Met, nil
		}

		if !c.Now().Before(deadline) {
			return TimedOut, nil
		}

		if err := c.Sleep(ctx, interval); err != nil {
			return TimedOut, err
		}
	}
}

// Fake is a virtual clock. Sleep advances it instantly, so blocking
// maneuvers run in zero wall time and their timing can be inspected.
type Fake struct {
	lock sync.Mutex
	now time.Time
	sleeps []time.Duration
	onSleep func(now time.Time)
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.lock.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	now, hook := f.now, f.onSleep
	f.lock.Unlock()

	if hook != nil {
		hook(now)
	}

	return nil
}

func (f *Fake) Advance(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.now = f.now.Add(d)
}

// OnSleep registers fn to be called with the new time after every Sleep.
func (f *Fake) OnSleep(fn func(now time.Time)) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.onSleep = fn
}

func (f *Fake) Sleeps() []time.Duration {
	f.lock.Lock()
	defer f.lock.Unlock()

	ret := make([]time.Duration, len(f.sleeps))
	copy(ret, f.sleeps)

	return ret
}

func (f *Fake) Slept() time.Duration {
	f.lock.Lock()
	defer f.lock.Unlock()

	var total time.Duration
	for _, d := range f.sleeps {
		total += d
	}

	return total
}

func (f *Fake) ResetSleeps() {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.sleeps = nil
}
