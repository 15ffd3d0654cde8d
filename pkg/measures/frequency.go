package measures

import (
	"fmt"
	"math"
	"strings"
)

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

// FrequencyFrame is the rest frame a frequency is measured in.
type FrequencyFrame int

const (
	FrequencyUndefined FrequencyFrame = iota
	TOPO
	GEO
	BARY
	LSRK
)

func (f FrequencyFrame) String() string {
	switch f {
	case TOPO:
		return "TOPO"
	case GEO:
		return "GEO"
	case BARY:
		return "BARY"
	case LSRK:
		return "LSRK"
	}
	return "UNDEFINED"
}

// ParseFrequencyFrame parses a frame name (case-insensitive).
func ParseFrequencyFrame(s string) (FrequencyFrame, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UNDEFINED":
		return FrequencyUndefined, nil
	case "TOPO":
		return TOPO, nil
	case "GEO":
		return GEO, nil
	case "BARY":
		return BARY, nil
	case "LSRK", "LSR":
		return LSRK, nil
	}
	return FrequencyUndefined, fmt.Errorf("unknown frequency frame %q", s)
}

// FrequencyUnit is a frequency unit with its scale to Hz.
type FrequencyUnit string

const (
	Hz  FrequencyUnit = "Hz"
	KHz FrequencyUnit = "kHz"
	MHz FrequencyUnit = "MHz"
	GHz FrequencyUnit = "GHz"
)

// Scale returns the number of Hz in one unit.
func (u FrequencyUnit) Scale() (float64, error) {
	switch u {
	case Hz, "":
		return 1, nil
	case KHz:
		return 1e3, nil
	case MHz:
		return 1e6, nil
	case GHz:
		return 1e9, nil
	}
	return 0, fmt.Errorf("unknown frequency unit %q", string(u))
}

// ParseFrequencyUnit accepts unit names in any case.
func ParseFrequencyUnit(s string) (FrequencyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hz":
		return Hz, nil
	case "khz":
		return KHz, nil
	case "mhz":
		return MHz, nil
	case "ghz":
		return GHz, nil
	}
	return Hz, fmt.Errorf("unknown frequency unit %q", s)
}

// Frequency is a value in Hz tagged with its frame.
type Frequency struct {
	Hz    float64
	Frame FrequencyFrame
}

// lsrkApex is the solar motion with respect to the kinematic LSR.
var lsrkApex = NewDirection(270.9595*math.Pi/180, 30.0047*math.Pi/180)

const lsrkSpeed = 20000.0 // m/s

// frameVelocity returns the velocity of an observer at rest in the given
// frame with respect to LSRK, in J2000 cartesian coordinates (m/s).
func frameVelocity(f FrequencyFrame, frame Frame) ([3]float64, error) {
	var v [3]float64
	if f == LSRK {
		return v, nil
	}
	apex := lsrkApex.Vector()
	for i := range v {
		v[i] = apex[i] * lsrkSpeed
	}
	if f == BARY {
		return v, nil
	}
	if frame.Epoch == nil {
		return v, fmt.Errorf("frequency frame %s requires an epoch", f)
	}
	orb := earthOrbitalVelocity(*frame.Epoch)
	for i := range v {
		v[i] += orb[i]
	}
	if f == GEO {
		return v, nil
	}
	if frame.Position == nil {
		return v, fmt.Errorf("frequency frame %s requires a position", f)
	}
	lon, _, _ := frame.Position.Geodetic()
	last := frame.Epoch.LAST(lon)
	r := math.Hypot(frame.Position.X, frame.Position.Y)
	s, c := math.Sincos(last)
	v[0] += -EarthRotationRate * r * s
	v[1] += EarthRotationRate * r * c
	return v, nil
}

// earthOrbitalVelocity is a low precision estimate of the heliocentric
// velocity of the Earth in equatorial cartesian coordinates.
func earthOrbitalVelocity(e Epoch) [3]float64 {
	d := e.In(UTC).MJD() - MJDJ2000
	rad := math.Pi / 180
	g := (357.528 + 0.9856003*d) * rad
	lambda := (280.460+0.9856474*d)*rad + (1.915*math.Sin(g)+0.020*math.Sin(2*g))*rad
	const speed = 29785.0
	eps := 23.439 * rad
	x := speed * math.Sin(lambda)
	y := -speed * math.Cos(lambda)
	se, ce := math.Sincos(eps)
	return [3]float64{x, y * ce, y * se}
}

// ConvertFrequency converts hz measured in frame from to frame to. The
// direction of frame is the line of sight. Undefined frames are treated
// as identical to the other side of the conversion.
func ConvertFrequency(hz float64, from, to FrequencyFrame, frame Frame) (float64, error) {
	if from == to || from == FrequencyUndefined || to == FrequencyUndefined {
		return hz, nil
	}
	if frame.Direction == nil {
		return 0, fmt.Errorf("frequency conversion %s->%s requires a direction", from, to)
	}
	dir := *frame.Direction
	if dir.Frame != J2000 {
		var err error
		if dir, err = dir.Convert(J2000, frame); err != nil {
			return 0, err
		}
	}
	s := dir.Vector()
	vFrom, err := frameVelocity(from, frame)
	if err != nil {
		return 0, err
	}
	vTo, err := frameVelocity(to, frame)
	if err != nil {
		return 0, err
	}
	dot := func(v [3]float64) float64 { return v[0]*s[0] + v[1]*s[1] + v[2]*s[2] }
	return hz * (1 + dot(vTo)/SpeedOfLight) / (1 + dot(vFrom)/SpeedOfLight), nil
}

// RadioVelocity returns the radio-convention velocity (m/s) of hz relative
// to the rest frequency.
func RadioVelocity(hz, rest float64) float64 {
	if rest == 0 {
		return 0
	}
	return SpeedOfLight * (1 - hz/rest)
}
