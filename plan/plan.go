// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package plan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/usedbytes/goldfish-bot/model"
)

// ErrEdgeStuck means the edge sensor never cleared during an escape.
var ErrEdgeStuck = errors.New("edge did not clear")

// Platform is everything the behaviours need from the hardware.
type Platform interface {
	Drive(left, right int) error
	SetBrush(on bool) error
	SetMouthAngle(angle int) error
	SetStatus(s model.Status) error

	EdgeDetected() bool
	Magnet(n int) bool

	Heading() (float64, bool)
}

// Task is a behaviour which takes over the loop when its trigger fires.
// Run blocks until the maneuver is complete.
type Task interface {
	Triggered() bool
	Run(ctx context.Context) error
}

// Toggle owns the run state. It is evaluated at the start of every tick.
type Toggle interface {
	Tick() error
	Fault(err error) error
	Shutdown() error
}

type Planner struct {
	state *model.RunState
	toggle Toggle
	period time.Duration

	names []string
	tasks map[string]Task

	Verbose bool
}

// FullStop is the explicit stop command: drive off, brush off, mouth at rest.
func FullStop(pl Platform, restAngle int, status model.Status) error {
	return errors.Join(
		pl.Drive(0, 0),
		pl.SetBrush(false),
		pl.SetMouthAngle(restAngle),
		pl.SetStatus(status),
	)
}

// Forward resumes driving straight ahead, if still running.
func Forward(state *model.RunState, pl Platform, speed int) error {
	return state.View(func(running bool) error {
		if !running {
			return nil
		}

		return pl.Drive(speed, speed)
	})
}

// AddTask adds a task at the lowest priority so far.
func (p *Planner) AddTask(name string, task Task) error {
	if _, ok := p.tasks[name]; ok {
		return fmt.Errorf("Duplicate task name '%s'", name)
	}

	p.tasks[name] = task
	p.names = append(p.names, name)

	return nil
}

func (p *Planner) Tasks() []string {
	return append([]string(nil), p.names...)
}

// Tick runs one iteration: the toggle first, then while running, the
// highest priority triggered task.
func (p *Planner) Tick(ctx context.Context) error {
	if err := p.toggle.Tick(); err != nil {
		return err
	}

	if !p.state.Running() {
		return nil
	}

	for _, name := range p.names {
		task := p.tasks[name]
		if !task.Triggered() {
			continue
		}

		if p.Verbose {
			log.Println("Task", name)
		}

		err := task.Run(ctx)
		if errors.Is(err, ErrEdgeStuck) {
			log.Printf("%s: %v", name, err)
			return p.toggle.Fault(err)
		}

		return err
	}

	return nil
}

// Run ticks every period until ctx is cancelled. Any other error stops the
// robot and is returned.
func (p *Planner) Run(ctx context.Context) error {
	tick := time.NewTicker(p.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}

		err := p.Tick(ctx)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return nil
		}

		log.Println("Control loop:", err)
		return errors.Join(err, p.toggle.Shutdown())
	}
}

func NewPlanner(state *model.RunState, toggle Toggle, period time.Duration) *Planner {
	return &Planner{
		state: state,
		toggle: toggle,
		period: period,
		tasks: make(map[string]Task),
	}
}
