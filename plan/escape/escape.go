// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package escape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
	"github.com/usedbytes/goldfish-bot/plan/turn"
)

const TaskName = "escape"

// Task backs away from an edge: spin clockwise until the edge sensors
// clear, then carry on a random extra angle so the robot doesn't keep
// hitting the edge at the same place.
type Task struct {
	platform plan.Platform
	state *model.RunState
	clock clock.Clock
	turner *turn.Turner
	rng *rand.Rand

	ranges []config.AngleRange
	pollInterval time.Duration
	clearTimeout time.Duration
	speed int
}

func (t *Task) Triggered() bool {
	return t.platform.EdgeDetected()
}

// ExtraAngle picks one of the ranges with equal probability, then an angle
// uniformly from it (inclusive).
func (t *Task) ExtraAngle() int {
	r := t.ranges[t.rng.Intn(len(t.ranges))]
	return r.Min + t.rng.Intn(r.Max - r.Min + 1)
}

func (t *Task) Run(ctx context.Context) error {
	log.Println("Escape: edge detected")

	if err := t.turner.Spin(turn.CW); err != nil {
		return err
	}

	res, err := clock.Poll(ctx, t.clock, t.pollInterval, t.clearTimeout, func() bool {
		return !t.platform.EdgeDetected()
	})
	if err != nil {
		return errors.Join(err, t.turner.Stop())
	}

	if res == clock.TimedOut {
		if err := t.turner.Stop(); err != nil {
			return err
		}
		return fmt.Errorf("escape: %w after %v", plan.ErrEdgeStuck, t.clearTimeout)
	}

	extra := t.ExtraAngle()
	log.Printf("Escape: clear, extra %d degrees", extra)

	if err := t.turner.Rotate(ctx, extra); err != nil {
		return err
	}

	return plan.Forward(t.state, t.platform, t.speed)
}

func NewTask(pl plan.Platform, state *model.RunState, c clock.Clock, turner *turn.Turner, cfg config.Config, rng *rand.Rand) *Task {
	return &Task{
		platform: pl,
		state: state,
		clock: c,
		turner: turner,
		rng: rng,
		ranges: cfg.Escape.Ranges,
		pollInterval: cfg.Escape.PollInterval.Duration,
		clearTimeout: cfg.Escape.ClearTimeout.Duration,
		speed: cfg.Drive.NormalSpeed,
	}
}
