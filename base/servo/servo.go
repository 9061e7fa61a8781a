package servo

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
)

const (
	MinAngle = 0
	MaxAngle = 180
)

// Dev is a hobby position servo on a PWM pin. MinPulse is the pulse width
// at 0 degrees and MaxPulse at 180.
type Dev struct {
	pin gpio.PinOut
	name string

	freq physic.Frequency
	period time.Duration
	minPulse, maxPulse time.Duration

	lock sync.Mutex
	angle int
}

func New(pin gpio.PinOut, freq physic.Frequency, minPulse, maxPulse time.Duration) (*Dev, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("servo: bad frequency %v", freq)
	}

	// physic.Frequency counts micro-hertz
	period := time.Duration(int64(time.Second) * int64(physic.Hertz) / int64(freq))
	if minPulse <= 0 || maxPulse <= minPulse || maxPulse >= period {
		return nil, fmt.Errorf("servo: pulse range [%v, %v] invalid for %v period", minPulse, maxPulse, period)
	}

	return &Dev{
		pin: pin,
		name: "Servo",
		freq: freq,
		period: period,
		minPulse: minPulse,
		maxPulse: maxPulse,
	}, nil
}

func Clamp(angle int) int {
	if angle < MinAngle {
		return MinAngle
	} else if angle > MaxAngle {
		return MaxAngle
	}

	return angle
}

// Pulse returns the pulse width for angle, after clamping.
func (d *Dev) Pulse(angle int) time.Duration {
	angle = Clamp(angle)
	return d.minPulse + (d.maxPulse - d.minPulse) * time.Duration(angle) / MaxAngle
}

func (d *Dev) Duty(angle int) gpio.Duty {
	return gpio.Duty(int64(d.Pulse(angle)) * int64(gpio.DutyMax) / int64(d.period))
}

func (d *Dev) SetAngle(angle int) error {
	angle = Clamp(angle)

	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.pin.PWM(d.Duty(angle), d.freq); err != nil {
		return fmt.Errorf("%s: %w", d.name, err)
	}
	d.angle = angle

	return nil
}

func (d *Dev) Angle() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.angle
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.pin)
}

// Halt stops sending pulses, letting the servo go limp.
func (d *Dev) Halt() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.pin.Out(gpio.Low)
}
