// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package mouth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
)

const TaskName = "mouth"

type phase int
const (
	phaseUnknown phase = iota
	phaseParked
	phaseSweeping
)

// Task opens and closes the mouth while running, and runs the brush. It
// has its own goroutine and only reads the run state.
type Task struct {
	platform plan.Platform
	state *model.RunState
	clock clock.Clock

	closed, open int
	steps int
	stepDelay time.Duration
	idle time.Duration

	phase phase
	run uint64
	step int
}

// Angle is the servo angle at position step of a full open-close cycle.
func (t *Task) Angle(step int) int {
	step = step % (2 * t.steps)
	if step > t.steps {
		step = 2 * t.steps - step
	}

	return t.closed + (t.open - t.closed) * step / t.steps
}

// Step does one update and returns how long to wait before the next. The
// run state can't change during a step.
func (t *Task) Step() (time.Duration, error) {
	var delay time.Duration

	err := t.state.ViewRun(func(running bool, run uint64) error {
		if !running {
			delay = t.idle
			if t.phase == phaseParked {
				return nil
			}

			t.phase = phaseParked
			t.step = 0
			return errors.Join(t.platform.SetBrush(false), t.platform.SetMouthAngle(t.closed))
		}

		delay = t.stepDelay
		// A stop and restart between two steps is still a new run: the
		// stop turned the brush off and parked the mouth.
		if t.phase != phaseSweeping || run != t.run {
			if err := t.platform.SetBrush(true); err != nil {
				return err
			}
			t.phase = phaseSweeping
			t.run = run
			t.step = 0
		}

		err := t.platform.SetMouthAngle(t.Angle(t.step))
		t.step = (t.step + 1) % (2 * t.steps)

		return err
	})

	return delay, err
}

// Run steps until ctx is cancelled or an actuator fails.
func (t *Task) Run(ctx context.Context) error {
	for {
		delay, err := t.Step()
		if err != nil {
			log.Println("Mouth:", err)
			return fmt.Errorf("mouth task: %w", err)
		}

		if t.clock.Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

func NewTask(pl plan.Platform, state *model.RunState, c clock.Clock, cfg config.Config) *Task {
	m := cfg.Mouth

	return &Task{
		platform: pl,
		state: state,
		clock: c,
		closed: m.ClosedAngle,
		open: m.OpenAngle,
		steps: m.Steps,
		stepDelay: m.SweepDuration.Duration / time.Duration(m.Steps),
		idle: m.IdleInterval.Duration,
	}
}
