package base

import (
	"sync"
	"testing"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"github.com/usedbytes/goldfish-bot/base/motor"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
)

type testPins struct {
	pins Pins
	brush, mouth, status *gpiotest.Pin
	lpwm, rpwm *gpiotest.Pin
	l1, l2 *gpiotest.Pin
	edge []*gpiotest.Pin
	magnets [3]*gpiotest.Pin
	toggle *gpiotest.Pin
}

func newTestPlatform(t *testing.T) (*Platform, *testPins) {
	t.Helper()

	tp := &testPins{
		brush: &gpiotest.Pin{N: "BRUSH"},
		mouth: &gpiotest.Pin{N: "MOUTH"},
		status: &gpiotest.Pin{N: "STATUS"},
		lpwm: &gpiotest.Pin{N: "LPWM"},
		rpwm: &gpiotest.Pin{N: "RPWM"},
		l1: &gpiotest.Pin{N: "L1"},
		l2: &gpiotest.Pin{N: "L2"},
		toggle: &gpiotest.Pin{N: "TOGGLE"},
	}

	tp.pins = Pins{
		Left: motor.Pins{In1: tp.l1, In2: tp.l2, PWM: tp.lpwm},
		Right: motor.Pins{In1: &gpiotest.Pin{N: "R1"}, In2: &gpiotest.Pin{N: "R2"}, PWM: tp.rpwm},
		Brush: tp.brush,
		Mouth: tp.mouth,
		Status: tp.status,
		Toggle: tp.toggle,
	}

	for _, n := range []string{"EDGE0", "EDGE1"} {
		pin := &gpiotest.Pin{N: n}
		tp.edge = append(tp.edge, pin)
		tp.pins.Edge = append(tp.pins.Edge, pin)
	}

	// Magnets are active low, so idle high
	for i := range tp.magnets {
		tp.magnets[i] = &gpiotest.Pin{N: "MAG", L: gpio.High}
		tp.pins.Magnets[i] = tp.magnets[i]
	}

	p, err := New(config.Default(), tp.pins)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return p, tp
}

func TestEdgeDetected(t *testing.T) {
	p, tp := newTestPlatform(t)

	if p.EdgeDetected() {
		t.Fatal("edge detected with all sensors low")
	}

	tp.edge[1].L = gpio.High
	if !p.EdgeDetected() {
		t.Error("edge not detected with one sensor active")
	}
}

func TestMagnetActiveLow(t *testing.T) {
	p, tp := newTestPlatform(t)

	for i := 0; i < 3; i++ {
		if p.Magnet(i) {
			t.Errorf("magnet %d triggered while idle", i)
		}
	}

	tp.magnets[2].L = gpio.Low
	if !p.Magnet(2) {
		t.Error("magnet 2 not triggered when pulled low")
	}
	if p.Magnet(0) || p.Magnet(1) {
		t.Error("wrong magnet triggered")
	}

	if p.Magnet(-1) || p.Magnet(3) {
		t.Error("out of range magnet reported triggered")
	}
}

func TestSwitch(t *testing.T) {
	p, tp := newTestPlatform(t)

	sw := p.Switch()
	if sw.Active() {
		t.Fatal("switch active while low")
	}

	tp.toggle.L = gpio.High
	if !sw.Active() {
		t.Error("switch not active while high")
	}
}

func TestOutputs(t *testing.T) {
	p, tp := newTestPlatform(t)

	if err := p.Drive(32768, -32768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l, r := p.GetSpeed(); l != 32768 || r != -32768 {
		t.Errorf("GetSpeed() = %d, %d", l, r)
	}
	if tp.lpwm.D == 0 || tp.rpwm.D == 0 {
		t.Error("drive PWM not set")
	}

	if err := p.SetBrush(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.brush.L != gpio.High || !p.BrushOn() {
		t.Error("brush not on")
	}

	if err := p.SetMouthAngle(78); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MouthAngle() != 78 || tp.mouth.D == 0 {
		t.Errorf("mouth angle %d, duty %v", p.MouthAngle(), tp.mouth.D)
	}
}

func TestSetStatus(t *testing.T) {
	p, tp := newTestPlatform(t)

	tests := []struct {
		status model.Status
		level gpio.Level
	}{
		{model.StatusRunning, gpio.High},
		{model.StatusStopped, gpio.Low},
		{model.StatusRunning, gpio.High},
		{model.StatusFault, gpio.Low},
	}

	for _, tt := range tests {
		if err := p.SetStatus(tt.status); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tp.status.L != tt.level {
			t.Errorf("%v: status pin %v, want %v", tt.status, tp.status.L, tt.level)
		}
		if p.Status() != tt.status {
			t.Errorf("Status() = %v, want %v", p.Status(), tt.status)
		}
	}
}

func TestHalt(t *testing.T) {
	p, tp := newTestPlatform(t)

	p.Drive(100, 100)
	p.SetBrush(true)
	p.SetStatus(model.StatusRunning)

	if err := p.Halt(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l, r := p.GetSpeed(); l != 0 || r != 0 {
		t.Errorf("still driving %d, %d", l, r)
	}
	if tp.lpwm.D != 0 || tp.rpwm.D != 0 {
		t.Error("PWM still active")
	}
	if tp.brush.L != gpio.Low || tp.status.L != gpio.Low {
		t.Error("brush or status still on")
	}
	if tp.mouth.L != gpio.Low {
		t.Error("mouth still driven")
	}
}

func TestHeadingWithoutIMU(t *testing.T) {
	p, _ := newTestPlatform(t)

	if _, ok := p.Heading(); ok {
		t.Error("heading reported without an IMU")
	}
}

// The control loop and the mouth task write at the same time. Every write
// to a channel must land whole: the pins end up matching exactly one call.
func TestConcurrentChannels(t *testing.T) {
	p, tp := newTestPlatform(t)

	var wg sync.WaitGroup
	drive := func(speed int) {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := p.Drive(speed, -speed); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
		}
	}

	wg.Add(4)
	go drive(26214)
	go drive(-32768)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := p.SetMouthAngle(i % 79); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := p.SetBrush(i%2 == 0); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	l, r := p.GetSpeed()
	if l != -r || (l != 26214 && l != -32768) {
		t.Fatalf("speed %d, %d is not one of the commands", l, r)
	}

	in1, in2 := gpio.Low, gpio.High
	if l > 0 {
		in1, in2 = gpio.High, gpio.Low
	}
	if tp.l1.L != in1 || tp.l2.L != in2 {
		t.Errorf("direction %v/%v doesn't match speed %d", tp.l1.L, tp.l2.L, l)
	}
	if tp.lpwm.D != p.Motors.Duty(l) || tp.rpwm.D != p.Motors.Duty(r) {
		t.Errorf("duty %v/%v doesn't match speed %d, %d", tp.lpwm.D, tp.rpwm.D, l, r)
	}

	if got, want := tp.mouth.D, p.mouth.Duty(p.MouthAngle()); got != want {
		t.Errorf("mouth duty %v, want %v for %d degrees", got, want, p.MouthAngle())
	}
	if gpio.Level(p.BrushOn()) != tp.brush.L {
		t.Errorf("brush pin %v, recorded %v", tp.brush.L, p.BrushOn())
	}
}
