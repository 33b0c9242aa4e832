package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DistanceUnit expresses a length unit as a number of meters.
type DistanceUnit float64

const (
	Meter     DistanceUnit = 1
	Kilometer DistanceUnit = 1000
)

func (u DistanceUnit) String() string {
	switch u {
	case Meter:
		return "m"
	case Kilometer:
		return "km"
	default:
		return fmt.Sprintf("%gm", float64(u))
	}
}

// ParseDistanceUnit accepts "m", "meter", "km" or "kilometer".
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch s {
	case "m", "meter", "meters":
		return Meter, nil
	case "km", "kilometer", "kilometers":
		return Kilometer, nil
	default:
		return 0, fmt.Errorf("unknown distance unit %q", s)
	}
}

// SpeedUnit is a distance unit per time unit, e.g. km per hour.
type SpeedUnit struct {
	Distance DistanceUnit
	Per      time.Duration
}

var (
	KilometersPerHour    = SpeedUnit{Distance: Kilometer, Per: time.Hour}
	MetersPerSecond      = SpeedUnit{Distance: Meter, Per: time.Second}
	MetersPerMillisecond = SpeedUnit{Distance: Meter, Per: time.Millisecond}
)

func (u SpeedUnit) String() string {
	per := map[time.Duration]string{time.Hour: "h", time.Minute: "min", time.Second: "s", time.Millisecond: "ms"}[u.Per]
	if per == "" {
		per = u.Per.String()
	}
	return u.Distance.String() + "/" + per
}

// ParseSpeedUnit parses "<distance>/<time>", e.g. "km/h", "m/s" or "m/ms".
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	dist, per, ok := strings.Cut(s, "/")
	if !ok {
		return SpeedUnit{}, fmt.Errorf("unknown speed unit %q", s)
	}
	d, err := ParseDistanceUnit(dist)
	if err != nil {
		return SpeedUnit{}, err
	}
	var t time.Duration
	switch per {
	case "h":
		t = time.Hour
	case "min":
		t = time.Minute
	case "s":
		t = time.Second
	case "ms":
		t = time.Millisecond
	default:
		return SpeedUnit{}, fmt.Errorf("unknown speed unit %q", s)
	}
	return SpeedUnit{Distance: d, Per: t}, nil
}

// Of returns a speed of v in this unit.
func (u SpeedUnit) Of(v float64) Speed {
	return Speed{Value: v, Unit: u}
}

// Speed is a scalar speed with its unit.
type Speed struct {
	Value float64
	Unit  SpeedUnit
}

// TravelTime returns the time needed to cover dist (expressed in unit) at
// speed s, expressed in multiples of out. The computation keeps the ratios
// exact for integral inputs so that e.g. 10km at 40km/h is exactly 15 minutes.
func (s Speed) TravelTime(dist float64, unit DistanceUnit, out time.Duration) float64 {
	d := dist
	if unit != s.Unit.Distance {
		d = dist * float64(unit) / float64(s.Unit.Distance)
	}
	t := d / s.Value
	if s.Unit.Per != out {
		t = t * float64(s.Unit.Per) / float64(out)
	}
	return t
}

// Distance returns the distance covered during t units of in, expressed in
// the distance unit out.
func (s Speed) Distance(t float64, in time.Duration, out DistanceUnit) float64 {
	per := t
	if in != s.Unit.Per {
		per = t * float64(in) / float64(s.Unit.Per)
	}
	d := per * s.Value
	if out != s.Unit.Distance {
		d = d * float64(s.Unit.Distance) / float64(out)
	}
	return d
}

// RoundingMode selects how a fractional duration is mapped onto an integer.
type RoundingMode int

const (
	Ceiling RoundingMode = iota
	Floor
	HalfUp
)

func (m RoundingMode) String() string {
	switch m {
	case Ceiling:
		return "ceiling"
	case Floor:
		return "floor"
	case HalfUp:
		return "half_up"
	default:
		return "unknown"
	}
}

// roundingEpsilon absorbs float noise around integers, e.g. 7.000000000000001.
const roundingEpsilon = 1e-9

// Round rounds v according to m.
func (m RoundingMode) Round(v float64) int64 {
	if r := math.Round(v); math.Abs(v-r) < roundingEpsilon {
		return int64(r)
	}
	switch m {
	case Floor:
		return int64(math.Floor(v))
	case HalfUp:
		return int64(math.Floor(v + 0.5))
	default:
		return int64(math.Ceil(v))
	}
}

// TimeConverter converts durations between two time units.
type TimeConverter struct {
	From time.Duration
	To   time.Duration
}

// Convert returns v (expressed in From) expressed in To.
func (c TimeConverter) Convert(v int64) float64 {
	if c.From == c.To {
		return float64(v)
	}
	return float64(v) * float64(c.From) / float64(c.To)
}

// ParseTimeUnit parses a duration string such as "1ms" or "1m" and rejects
// non-positive values.
func ParseTimeUnit(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("time unit must be positive, got %s", s)
	}
	return d, nil
}
