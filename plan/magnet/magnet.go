// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package magnet

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
	"github.com/usedbytes/goldfish-bot/plan/turn"
)

const NumSensors = 3

// Name is the task name for sensor n (0-based).
func Name(n int) string {
	return fmt.Sprintf("magnet%d", n + 1)
}

// Angles gives the turn for each sensor: right angle, left angle, about turn.
func Angles(halfTurn turn.Direction) [NumSensors]int {
	return [NumSensors]int{ 90, -90, 180 * int(halfTurn) }
}

type Task struct {
	n int
	angle int

	platform plan.Platform
	state *model.RunState
	clock clock.Clock
	turner *turn.Turner

	cooldown time.Duration
	speed int
}

func (t *Task) Triggered() bool {
	return t.platform.Magnet(t.n)
}

func (t *Task) Angle() int {
	return t.angle
}

func (t *Task) Run(ctx context.Context) error {
	log.Printf("%s: turn %d", Name(t.n), t.angle)

	if err := t.turner.Stop(); err != nil {
		return err
	}

	if err := t.turner.Rotate(ctx, t.angle); err != nil {
		return err
	}

	if err := plan.Forward(t.state, t.platform, t.speed); err != nil {
		return err
	}

	// Drive off the magnet before looking again
	return t.clock.Sleep(ctx, t.cooldown)
}

func NewTask(n int, pl plan.Platform, state *model.RunState, c clock.Clock, turner *turn.Turner, cfg config.Config) (*Task, error) {
	if n < 0 || n >= NumSensors {
		return nil, fmt.Errorf("No magnet sensor %d", n)
	}

	dir, err := turn.ParseDirection(cfg.Magnet.HalfTurnDirection)
	if err != nil {
		return nil, err
	}

	return &Task{
		n: n,
		angle: Angles(dir)[n],
		platform: pl,
		state: state,
		clock: c,
		turner: turner,
		cooldown: cfg.Magnet.Cooldown.Duration,
		speed: cfg.Drive.NormalSpeed,
	}, nil
}
