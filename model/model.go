// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package model

import (
	"sync"
)

type Status int
const (
	StatusStopped Status = iota
	StatusRunning
	StatusFault
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFault:
		return "fault"
	default:
		return "stopped"
	}
}

// RunState is the shared "is running" flag. It has exactly one writer (the
// toggle state machine); the control loop and the mouth task only read it.
type RunState struct {
	lock sync.RWMutex
	running bool
	// Counts stopped -> running transitions
	run uint64
}

func NewRunState() *RunState {
	return &RunState{}
}

func (s *RunState) Running() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.running
}

// Set stores the new state and applies its side effects under the write
// lock. Readers never see the new value before effects has returned.
func (s *RunState) Set(running bool, effects func() error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if running && !s.running {
		s.run++
	}
	s.running = running
	if effects == nil {
		return nil
	}

	return effects()
}

// View calls fn with the current state, holding off Set until fn returns.
// fn must not call Set.
func (s *RunState) View(fn func(running bool) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return fn(s.running)
}

// ViewRun is View, also passing the number of the current run so a reader
// can tell a restart apart from a run it has already seen.
func (s *RunState) ViewRun(fn func(running bool, run uint64) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return fn(s.running, s.run)
}
