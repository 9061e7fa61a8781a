// Package plantest has fakes for exercising behaviours without hardware.
package plantest

import (
	"fmt"
	"sync"

	"github.com/usedbytes/goldfish-bot/model"
)

// Platform records every actuator command as a string like "drive 10 -10",
// "brush on", "mouth 78" or "status running".
type Platform struct {
	lock sync.Mutex
	calls []string

	left, right int
	brush bool
	mouth int
	status model.Status

	edge bool
	magnets [3]bool

	heading float64
	imu bool

	DriveErr error
	// StopErr fails only "drive 0 0"
	StopErr error
	BrushErr error
	MouthErr error
}

func NewPlatform() *Platform {
	return &Platform{}
}

func (p *Platform) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Platform) Drive(left, right int) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.record("drive %d %d", left, right)
	if p.DriveErr != nil {
		return p.DriveErr
	}
	if left == 0 && right == 0 && p.StopErr != nil {
		return p.StopErr
	}
	p.left, p.right = left, right

	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (p *Platform) SetBrush(on bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.record("brush %s", onOff(on))
	if p.BrushErr != nil {
		return p.BrushErr
	}
	p.brush = on

	return nil
}

func (p *Platform) SetMouthAngle(angle int) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.record("mouth %d", angle)
	if p.MouthErr != nil {
		return p.MouthErr
	}
	p.mouth = angle

	return nil
}

func (p *Platform) SetStatus(s model.Status) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.record("status %v", s)
	p.status = s

	return nil
}

func (p *Platform) EdgeDetected() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.edge
}

func (p *Platform) SetEdge(v bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.edge = v
}

func (p *Platform) Magnet(n int) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if n < 0 || n >= len(p.magnets) {
		return false
	}

	return p.magnets[n]
}

func (p *Platform) SetMagnet(n int, v bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.magnets[n] = v
}

func (p *Platform) Heading() (float64, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.heading, p.imu
}

// SetHeading makes the fake report an IMU with the given heading.
func (p *Platform) SetHeading(h float64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.heading = h
	p.imu = true
}

func (p *Platform) Speed() (int, int) {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.left, p.right
}

func (p *Platform) Brush() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.brush
}

func (p *Platform) Mouth() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.mouth
}

func (p *Platform) Status() model.Status {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.status
}

func (p *Platform) Calls() []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]string(nil), p.calls...)
}

func (p *Platform) ResetCalls() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.calls = nil
}

// Switch is a settable toggle input.
type Switch struct {
	lock sync.Mutex
	level bool
}

func (s *Switch) Set(level bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.level = level
}

func (s *Switch) Active() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.level
}
