// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets durations be written as "100ms" in the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func D(d time.Duration) Duration {
	return Duration{d}
}

type Config struct {
	Loop LoopConfig `toml:"loop"`
	Toggle ToggleConfig `toml:"toggle"`
	Drive DriveConfig `toml:"drive"`
	Turn TurnConfig `toml:"turn"`
	Escape EscapeConfig `toml:"escape"`
	Magnet MagnetConfig `toml:"magnet"`
	Mouth MouthConfig `toml:"mouth"`
	Pins PinConfig `toml:"pins"`
	IMU IMUConfig `toml:"imu"`
}

type LoopConfig struct {
	Period Duration `toml:"period"`
}

type ToggleConfig struct {
	// Minimum time between accepted switch transitions
	Debounce Duration `toml:"debounce"`
	// "latch": switch level is the run state. "momentary": each press toggles.
	Mode string `toml:"mode"`
	// "switch" or "gamepad"
	Source string `toml:"source"`
}

// DriveConfig speeds are in duty units, 0..MaxSpeed.
type DriveConfig struct {
	MaxSpeed int `toml:"max_speed"`
	NormalSpeed int `toml:"normal_speed"`
	RotationSpeed int `toml:"rotation_speed"`
	FrequencyHz int `toml:"frequency_hz"`
}

type TurnConfig struct {
	// Rate is the in-place angular rate at RotationSpeed, in degrees per
	// second. It is a physical calibration: measure it on the real surface.
	Rate float64 `toml:"rate"`
}

type AngleRange struct {
	Min int `toml:"min"`
	Max int `toml:"max"`
}

type EscapeConfig struct {
	PollInterval Duration `toml:"poll_interval"`
	ClearTimeout Duration `toml:"clear_timeout"`
	Ranges []AngleRange `toml:"range"`
}

type MagnetConfig struct {
	Cooldown Duration `toml:"cooldown"`
	// "cw" or "ccw"
	HalfTurnDirection string `toml:"half_turn_direction"`
}

type MouthConfig struct {
	ClosedAngle int `toml:"closed_angle"`
	OpenAngle int `toml:"open_angle"`
	Steps int `toml:"steps"`
	SweepDuration Duration `toml:"sweep_duration"`
	IdleInterval Duration `toml:"idle_interval"`
	MinPulse Duration `toml:"min_pulse"`
	MaxPulse Duration `toml:"max_pulse"`
	FrequencyHz int `toml:"frequency_hz"`
}

// PinConfig names pins as known to periph's gpioreg, e.g. "GPIO17".
// Active levels are "high" or "low".
type PinConfig struct {
	LeftIn1 string `toml:"left_in1"`
	LeftIn2 string `toml:"left_in2"`
	LeftPWM string `toml:"left_pwm"`
	RightIn1 string `toml:"right_in1"`
	RightIn2 string `toml:"right_in2"`
	RightPWM string `toml:"right_pwm"`
	Brush string `toml:"brush"`
	Mouth string `toml:"mouth"`
	Status string `toml:"status"`

	Edge []string `toml:"edge"`
	EdgeActive string `toml:"edge_active"`
	Magnets []string `toml:"magnets"`
	MagnetActive string `toml:"magnet_active"`
	Toggle string `toml:"toggle"`
	ToggleActive string `toml:"toggle_active"`
}

type IMUConfig struct {
	Enabled bool `toml:"enabled"`
	Bus string `toml:"bus"`
}

func Default() Config {
	return Config{
		Loop: LoopConfig{
			Period: D(100 * time.Millisecond),
		},
		Toggle: ToggleConfig{
			Debounce: D(50 * time.Millisecond),
			Mode: "latch",
			Source: "switch",
		},
		Drive: DriveConfig{
			MaxSpeed: 65535,
			NormalSpeed: 32768,
			RotationSpeed: 26214,
			FrequencyHz: 1000,
		},
		Turn: TurnConfig{
			Rate: 90,
		},
		Escape: EscapeConfig{
			PollInterval: D(10 * time.Millisecond),
			ClearTimeout: D(5 * time.Second),
			Ranges: []AngleRange{
				{10, 80},
				{100, 170},
			},
		},
		Magnet: MagnetConfig{
			Cooldown: D(500 * time.Millisecond),
			HalfTurnDirection: "cw",
		},
		Mouth: MouthConfig{
			ClosedAngle: 0,
			OpenAngle: 78,
			Steps: 50,
			SweepDuration: D(2 * time.Second),
			IdleInterval: D(200 * time.Millisecond),
			MinPulse: D(500 * time.Microsecond),
			MaxPulse: D(2500 * time.Microsecond),
			FrequencyHz: 50,
		},
		Pins: PinConfig{
			LeftIn1: "GPIO5",
			LeftIn2: "GPIO6",
			LeftPWM: "GPIO12",
			RightIn1: "GPIO20",
			RightIn2: "GPIO21",
			RightPWM: "GPIO13",
			Brush: "GPIO16",
			Mouth: "GPIO23",
			Status: "GPIO26",

			Edge: []string{"GPIO17"},
			EdgeActive: "high",
			Magnets: []string{"GPIO22", "GPIO24", "GPIO25"},
			MagnetActive: "low",
			Toggle: "GPIO27",
			ToggleActive: "high",
		},
		IMU: IMUConfig{
			Enabled: false,
			Bus: "",
		},
	}
}

// Load reads path over the defaults. An empty path just returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	// Replace rather than merge the default escape ranges
	cfg.Escape.Ranges = nil

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	if len(cfg.Escape.Ranges) == 0 {
		cfg.Escape.Ranges = Default().Escape.Ranges
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	return cfg, cfg.Validate()
}

func validLevel(l string) bool {
	return l == "high" || l == "low"
}

func (c Config) Validate() error {
	if c.Loop.Period.Duration <= 0 {
		return fmt.Errorf("loop.period must be positive")
	}

	if c.Toggle.Debounce.Duration < 0 {
		return fmt.Errorf("toggle.debounce must not be negative")
	}
	if c.Toggle.Mode != "latch" && c.Toggle.Mode != "momentary" {
		return fmt.Errorf("toggle.mode must be \"latch\" or \"momentary\", got %q", c.Toggle.Mode)
	}
	if c.Toggle.Source != "switch" && c.Toggle.Source != "gamepad" {
		return fmt.Errorf("toggle.source must be \"switch\" or \"gamepad\", got %q", c.Toggle.Source)
	}

	d := c.Drive
	if d.MaxSpeed <= 0 {
		return fmt.Errorf("drive.max_speed must be positive")
	}
	if d.NormalSpeed <= 0 || d.NormalSpeed > d.MaxSpeed {
		return fmt.Errorf("drive.normal_speed must be in (0, %d]", d.MaxSpeed)
	}
	if d.RotationSpeed <= 0 || d.RotationSpeed > d.MaxSpeed {
		return fmt.Errorf("drive.rotation_speed must be in (0, %d]", d.MaxSpeed)
	}
	if d.FrequencyHz <= 0 {
		return fmt.Errorf("drive.frequency_hz must be positive")
	}

	if c.Turn.Rate <= 0 {
		return fmt.Errorf("turn.rate must be positive")
	}

	e := c.Escape
	if e.PollInterval.Duration <= 0 {
		return fmt.Errorf("escape.poll_interval must be positive")
	}
	if e.ClearTimeout.Duration <= 0 {
		return fmt.Errorf("escape.clear_timeout must be positive")
	}
	if len(e.Ranges) == 0 {
		return fmt.Errorf("escape needs at least one range")
	}
	for _, r := range e.Ranges {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("bad escape range [%d, %d]", r.Min, r.Max)
		}
	}

	if c.Magnet.Cooldown.Duration < 0 {
		return fmt.Errorf("magnet.cooldown must not be negative")
	}
	if c.Magnet.HalfTurnDirection != "cw" && c.Magnet.HalfTurnDirection != "ccw" {
		return fmt.Errorf("magnet.half_turn_direction must be \"cw\" or \"ccw\", got %q", c.Magnet.HalfTurnDirection)
	}

	m := c.Mouth
	for _, a := range []int{m.ClosedAngle, m.OpenAngle} {
		if a < 0 || a > 180 {
			return fmt.Errorf("mouth angles must be in [0, 180], got %d", a)
		}
	}
	if m.Steps <= 0 {
		return fmt.Errorf("mouth.steps must be positive")
	}
	if m.SweepDuration.Duration <= 0 || m.IdleInterval.Duration <= 0 {
		return fmt.Errorf("mouth.sweep_duration and mouth.idle_interval must be positive")
	}
	if m.MinPulse.Duration <= 0 || m.MaxPulse.Duration <= m.MinPulse.Duration {
		return fmt.Errorf("mouth pulse range [%v, %v] is invalid", m.MinPulse, m.MaxPulse)
	}
	if m.FrequencyHz <= 0 {
		return fmt.Errorf("mouth.frequency_hz must be positive")
	}
	period := time.Second / time.Duration(m.FrequencyHz)
	if m.MaxPulse.Duration >= period {
		return fmt.Errorf("mouth.max_pulse %v does not fit in a %v period", m.MaxPulse, period)
	}

	p := c.Pins
	if len(p.Edge) == 0 {
		return fmt.Errorf("pins.edge needs at least one pin")
	}
	if len(p.Magnets) != 3 {
		return fmt.Errorf("pins.magnets needs exactly 3 pins, got %d", len(p.Magnets))
	}
	for _, l := range []string{p.EdgeActive, p.MagnetActive, p.ToggleActive} {
		if !validLevel(l) {
			return fmt.Errorf("active level must be \"high\" or \"low\", got %q", l)
		}
	}

	return nil
}
