// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package base

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
	"github.com/usedbytes/bno055"
	"github.com/usedbytes/linux-led"

	"github.com/usedbytes/goldfish-bot/base/motor"
	"github.com/usedbytes/goldfish-bot/base/servo"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
)

// Input is a digital sensor with the level that counts as "active".
type Input struct {
	pin gpio.PinIn
	active gpio.Level
}

func NewInput(pin gpio.PinIn, active gpio.Level) Input {
	return Input{pin: pin, active: active}
}

func (i Input) Active() bool {
	return i.pin.Read() == i.active
}

// Pins is the resolved hardware. Status may be nil.
type Pins struct {
	Left, Right motor.Pins
	Brush gpio.PinOut
	Mouth gpio.PinOut
	Status gpio.PinOut

	Edge []gpio.PinIn
	Magnets [3]gpio.PinIn
	Toggle gpio.PinIn
}

// Platform owns the physical outputs. Each output channel has its own lock
// so the control loop and the mouth task never interleave writes to the
// same channel.
type Platform struct {
	driveLock sync.Mutex
	Motors *motor.Motors

	brushLock sync.Mutex
	brush gpio.PinOut
	brushOn bool

	mouth *servo.Dev

	edge []Input
	magnets [3]Input
	toggle Input

	statusLock sync.Mutex
	statusPin gpio.PinOut
	status model.Status
	led led.RGBLED

	i2cBus i2c.BusCloser
	imu *bno055.Dev
}

const imuAddr = 0x29

var (
	colorRunning = color.NRGBA{0x00, 0xff, 0x00, 0x80}
	colorStopped = color.NRGBA{0x00, 0x80, 0xff, 0x80}
	colorFault = color.NRGBA{0xff, 0x00, 0x00, 0x80}
)

func parseLevel(s string) gpio.Level {
	return gpio.Level(s == "high")
}

func pullFor(active gpio.Level) gpio.Pull {
	if active == gpio.High {
		return gpio.PullDown
	}
	return gpio.PullUp
}

// New builds a Platform from already-resolved pins.
func New(cfg config.Config, pins Pins) (*Platform, error) {
	mouth, err := servo.New(pins.Mouth, physic.Frequency(cfg.Mouth.FrequencyHz) * physic.Hertz,
			cfg.Mouth.MinPulse.Duration, cfg.Mouth.MaxPulse.Duration)
	if err != nil {
		return nil, err
	}

	p := &Platform{
		Motors: motor.NewMotors(pins.Left, pins.Right, cfg.Drive.MaxSpeed,
				physic.Frequency(cfg.Drive.FrequencyHz) * physic.Hertz),
		brush: pins.Brush,
		mouth: mouth,
		toggle: NewInput(pins.Toggle, parseLevel(cfg.Pins.ToggleActive)),
		statusPin: pins.Status,
	}

	edgeActive := parseLevel(cfg.Pins.EdgeActive)
	for _, pin := range pins.Edge {
		p.edge = append(p.edge, NewInput(pin, edgeActive))
	}

	magnetActive := parseLevel(cfg.Pins.MagnetActive)
	for i, pin := range pins.Magnets {
		p.magnets[i] = NewInput(pin, magnetActive)
	}

	return p, nil
}

func outPin(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such pin '%s'", name)
	}

	return pin, nil
}

func inPin(name string, active gpio.Level) (gpio.PinIO, error) {
	pin, err := outPin(name)
	if err != nil {
		return nil, err
	}

	if err = pin.In(pullFor(active), gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configuring %s: %w", name, err)
	}

	return pin, nil
}

func NewPlatform(cfg config.Config) (*Platform, error) {
	_, err := host.Init()
	if err != nil {
		return nil, err
	}

	pc := cfg.Pins
	var pins Pins

	outs := []struct {
		name string
		dst *gpio.PinOut
	}{
		{ pc.LeftIn1, &pins.Left.In1 },
		{ pc.LeftIn2, &pins.Left.In2 },
		{ pc.LeftPWM, &pins.Left.PWM },
		{ pc.RightIn1, &pins.Right.In1 },
		{ pc.RightIn2, &pins.Right.In2 },
		{ pc.RightPWM, &pins.Right.PWM },
		{ pc.Brush, &pins.Brush },
		{ pc.Mouth, &pins.Mouth },
	}
	for _, o := range outs {
		pin, err := outPin(o.name)
		if err != nil {
			return nil, err
		}
		*o.dst = pin
	}

	if pc.Status != "" {
		pins.Status, err = outPin(pc.Status)
		if err != nil {
			return nil, err
		}
	}

	edgeActive := parseLevel(pc.EdgeActive)
	for _, name := range pc.Edge {
		pin, err := inPin(name, edgeActive)
		if err != nil {
			return nil, err
		}
		pins.Edge = append(pins.Edge, pin)
	}

	magnetActive := parseLevel(pc.MagnetActive)
	for i, name := range pc.Magnets {
		pins.Magnets[i], err = inPin(name, magnetActive)
		if err != nil {
			return nil, err
		}
	}

	pins.Toggle, err = inPin(pc.Toggle, parseLevel(pc.ToggleActive))
	if err != nil {
		return nil, err
	}

	p, err := New(cfg, pins)
	if err != nil {
		return nil, err
	}

	if cfg.IMU.Enabled {
		p.openIMU(cfg.IMU)
	}

	return p, nil
}

// openIMU is best effort, the IMU is only used for logging.
func (p *Platform) openIMU(cfg config.IMUConfig) {
	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		log.Println("Couldn't open I2C bus:", err)
		return
	}

	imu, err := bno055.NewI2C(b, imuAddr)
	if err != nil {
		log.Println("Couldn't get BNO055")
		b.Close()
		return
	}

	err = imu.SetUseExternalCrystal(true)
	if err != nil {
		log.Println("IMU: SetUseExternalCrystal failed")
	}

	p.i2cBus = b
	p.imu = imu
}

func (p *Platform) Drive(left, right int) error {
	p.driveLock.Lock()
	defer p.driveLock.Unlock()

	if err := p.Motors.SetSpeed(left, right); err != nil {
		return fmt.Errorf("drive: %w", err)
	}

	return nil
}

func (p *Platform) GetSpeed() (int, int) {
	p.driveLock.Lock()
	defer p.driveLock.Unlock()

	return p.Motors.GetSpeed()
}

func (p *Platform) SetBrush(on bool) error {
	p.brushLock.Lock()
	defer p.brushLock.Unlock()

	if err := p.brush.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("brush: %w", err)
	}
	p.brushOn = on

	return nil
}

func (p *Platform) BrushOn() bool {
	p.brushLock.Lock()
	defer p.brushLock.Unlock()

	return p.brushOn
}

func (p *Platform) SetMouthAngle(angle int) error {
	if err := p.mouth.SetAngle(angle); err != nil {
		return fmt.Errorf("mouth: %w", err)
	}

	return nil
}

func (p *Platform) MouthAngle() int {
	return p.mouth.Angle()
}

func (p *Platform) EdgeDetected() bool {
	for _, e := range p.edge {
		if e.Active() {
			return true
		}
	}

	return false
}

// Magnet reports whether magnetic sensor n (0, 1 or 2) is triggered.
func (p *Platform) Magnet(n int) bool {
	if n < 0 || n >= len(p.magnets) {
		return false
	}

	return p.magnets[n].Active()
}

func (p *Platform) Switch() Input {
	return p.toggle
}

func (p *Platform) AddLed(rgb led.RGBLED) {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()

	p.led = rgb
	p.updateLed()
}

func (p *Platform) updateLed() {
	if p.led == nil {
		return
	}

	switch p.status {
	case model.StatusRunning:
		p.led.SetTrigger(led.TriggerNone)
		p.led.SetColor(colorRunning)
	case model.StatusFault:
		p.led.SetTrigger(led.TriggerNone)
		p.led.SetColor(colorFault)
	default:
		p.led.SetTrigger(led.TriggerHeartbeat)
		p.led.SetColor(colorStopped)
	}
}

// SetStatus shows the run state on the status pin (lit while running) and
// on the gamepad light bar if there is one.
func (p *Platform) SetStatus(s model.Status) error {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()

	p.status = s
	p.updateLed()

	if p.statusPin == nil {
		return nil
	}

	if err := p.statusPin.Out(gpio.Level(s == model.StatusRunning)); err != nil {
		return fmt.Errorf("status led: %w", err)
	}

	return nil
}

func (p *Platform) Status() model.Status {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()

	return p.status
}

// Heading returns the IMU's heading in degrees, if there is an IMU.
func (p *Platform) Heading() (float64, bool) {
	if p.imu == nil {
		return 0, false
	}

	vec, err := p.imu.GetVector(bno055.VECTOR_EULER)
	if err != nil || len(vec) == 0 {
		log.Println("IMU: GetVector failed", err)
		return 0, false
	}

	return vec[0], true
}

// Halt stops everything without going through the run state. It is the
// last thing done before exit.
func (p *Platform) Halt() error {
	var errs []error

	errs = append(errs, p.Drive(0, 0))
	errs = append(errs, p.SetBrush(false))
	errs = append(errs, p.SetStatus(model.StatusStopped))

	// Give the servo a moment to park before cutting the pulses
	time.Sleep(100 * time.Millisecond)
	errs = append(errs, p.mouth.Halt())

	return errors.Join(errs...)
}

func (p *Platform) Close() error {
	if p.i2cBus != nil {
		return p.i2cBus.Close()
	}

	return nil
}
