// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package motor

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
)

// Pins for one channel of a two-wire drive stage (IN1/IN2 select
// direction, PWM sets speed).
type Pins struct {
	In1, In2 gpio.PinOut
	PWM gpio.PinOut
}

type motor struct {
	name string
	pins Pins
	speed int
}

type Motors struct {
	maxSpeed int
	freq physic.Frequency

	motors [2]motor
}

func clamp(speed, max int) int {
	if speed > max {
		return max
	} else if speed < -max {
		return -max
	}
	return speed
}

// Duty converts a speed magnitude in [0, maxSpeed] to a PWM duty.
func (m *Motors) Duty(speed int) gpio.Duty {
	if speed < 0 {
		speed = -speed
	}
	speed = clamp(speed, m.maxSpeed)

	return gpio.Duty(int64(speed) * int64(gpio.DutyMax) / int64(m.maxSpeed))
}

func (m *Motors) set(mot *motor, speed int) error {
	speed = clamp(speed, m.maxSpeed)

	in1, in2 := gpio.Low, gpio.Low
	if speed > 0 {
		in1 = gpio.High
	} else if speed < 0 {
		in2 = gpio.High
	}

	if err := mot.pins.In1.Out(in1); err != nil {
		return fmt.Errorf("%s in1: %w", mot.name, err)
	}
	if err := mot.pins.In2.Out(in2); err != nil {
		return fmt.Errorf("%s in2: %w", mot.name, err)
	}
	if err := mot.pins.PWM.PWM(m.Duty(speed), m.freq); err != nil {
		return fmt.Errorf("%s pwm: %w", mot.name, err)
	}

	mot.speed = speed

	return nil
}

// SetSpeed drives both wheels. Positive is forward, zero stops with both
// direction lines low.
func (m *Motors) SetSpeed(left, right int) error {
	if err := m.set(&m.motors[0], left); err != nil {
		return err
	}

	return m.set(&m.motors[1], right)
}

func (m *Motors) GetSpeed() (int, int) {
	return m.motors[0].speed, m.motors[1].speed
}

func (m *Motors) GetMaxSpeed() int {
	return m.maxSpeed
}

func NewMotors(left, right Pins, maxSpeed int, freq physic.Frequency) *Motors {
	return &Motors{
		maxSpeed: maxSpeed,
		freq: freq,

		motors: [2]motor{
			{ name: "left", pins: left },
			{ name: "right", pins: right },
		},
	}
}
