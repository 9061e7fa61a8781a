// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package toggle

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
)

type Mode int
const (
	// Latch follows the switch level: high runs, low stops.
	Latch Mode = iota
	// Momentary toggles on every rising edge.
	Momentary
)

func (m Mode) String() string {
	if m == Momentary {
		return "momentary"
	}
	return "latch"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "latch", "":
		return Latch, nil
	case "momentary":
		return Momentary, nil
	}

	return Latch, fmt.Errorf("Unknown toggle mode '%s'", s)
}

type Switch interface {
	Active() bool
}

// Machine debounces the switch and is the only writer of the run state.
type Machine struct {
	state *model.RunState
	sw Switch
	platform plan.Platform
	clock clock.Clock

	mode Mode
	debounce time.Duration
	speed int
	restAngle int

	lastLevel bool
	lastTransition time.Time
	faulted bool
	session string
}

func (m *Machine) accept(now time.Time) bool {
	if now.Sub(m.lastTransition) < m.debounce {
		return false
	}

	m.lastTransition = now
	return true
}

// Tick samples the switch once.
func (m *Machine) Tick() error {
	level := m.sw.Active()
	now := m.clock.Now()
	running := m.state.Running()

	if m.mode == Momentary {
		rising := level && !m.lastLevel
		m.lastLevel = level

		if !rising || !m.accept(now) {
			return nil
		}

		m.faulted = false
		if running {
			return m.stop(model.StatusStopped)
		}
		return m.start()
	}

	if m.faulted {
		if !level {
			log.Println("Toggle: fault cleared")
			m.faulted = false
		}
		return nil
	}

	if level == running || !m.accept(now) {
		return nil
	}

	if level {
		return m.start()
	}
	return m.stop(model.StatusStopped)
}

func (m *Machine) start() error {
	m.session = uuid.New().String()
	log.Println("Toggle: running, session", m.session)

	return m.state.Set(true, func() error {
		if err := m.platform.Drive(m.speed, m.speed); err != nil {
			return err
		}

		return m.platform.SetStatus(model.StatusRunning)
	})
}

func (m *Machine) stop(status model.Status) error {
	if m.session != "" {
		log.Println("Toggle: stopped, session", m.session)
	}
	m.session = ""

	return m.state.Set(false, func() error {
		return plan.FullStop(m.platform, m.restAngle, status)
	})
}

// Fault stops the robot and keeps it stopped until the switch has been
// released (latch mode) or pressed again (momentary mode).
func (m *Machine) Fault(err error) error {
	log.Println("Toggle: fault stop:", err)

	m.faulted = true
	m.lastTransition = m.clock.Now()

	return m.stop(model.StatusFault)
}

func (m *Machine) Faulted() bool {
	return m.faulted
}

// Session is the ID of the current run, empty while stopped.
func (m *Machine) Session() string {
	return m.session
}

// Shutdown is the final stop before exit.
func (m *Machine) Shutdown() error {
	return m.stop(model.StatusStopped)
}

func NewMachine(state *model.RunState, sw Switch, pl plan.Platform, c clock.Clock, cfg config.Config) (*Machine, error) {
	mode, err := ParseMode(cfg.Toggle.Mode)
	if err != nil {
		return nil, err
	}

	return &Machine{
		state: state,
		sw: sw,
		platform: pl,
		clock: c,
		mode: mode,
		debounce: cfg.Toggle.Debounce.Duration,
		speed: cfg.Drive.NormalSpeed,
		restAngle: cfg.Mouth.ClosedAngle,
		lastTransition: c.Now(),
	}, nil
}
