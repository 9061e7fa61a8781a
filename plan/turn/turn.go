// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package turn

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/plan"
)

// Direction of an in-place rotation, seen from above.
type Direction int
const (
	CW Direction = 1
	CCW Direction = -1
)

func (d Direction) String() string {
	if d == CCW {
		return "ccw"
	}
	return "cw"
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "cw":
		return CW, nil
	case "ccw":
		return CCW, nil
	}

	return CW, fmt.Errorf("Unknown direction '%s'", s)
}

func normalise(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees > 180 {
		degrees -= 360
	} else if degrees <= -180 {
		degrees += 360
	}

	return degrees
}

// Turner does open-loop rotations: spin for the time the commanded angle
// takes at the calibrated rate.
type Turner struct {
	platform plan.Platform
	clock clock.Clock

	speed int
	rate float64
}

// Duration is how long a rotation of angle degrees takes.
func (t *Turner) Duration(angle int) time.Duration {
	secs := math.Abs(float64(angle)) / t.rate
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Spin starts rotating in place and returns immediately.
func (t *Turner) Spin(dir Direction) error {
	speed := int(dir) * t.speed
	return t.platform.Drive(speed, -speed)
}

func (t *Turner) Stop() error {
	return t.platform.Drive(0, 0)
}

// Rotate turns by angle degrees, positive clockwise, and leaves the drive
// stopped. If ctx is cancelled the drive is still stopped.
func (t *Turner) Rotate(ctx context.Context, angle int) error {
	if angle == 0 {
		return nil
	}

	dir := CW
	if angle < 0 {
		dir = CCW
	}

	start, imu := t.platform.Heading()

	if err := t.Spin(dir); err != nil {
		return err
	}

	serr := t.clock.Sleep(ctx, t.Duration(angle))

	if err := t.Stop(); err != nil {
		return err
	}
	if serr != nil {
		return serr
	}

	if imu {
		if end, ok := t.platform.Heading(); ok {
			log.Printf("Turn: commanded %d, measured %.1f", angle, normalise(end - start))
		}
	}

	return nil
}

func NewTurner(pl plan.Platform, c clock.Clock, speed int, rate float64) *Turner {
	return &Turner{
		platform: pl,
		clock: c,
		speed: speed,
		rate: rate,
	}
}
