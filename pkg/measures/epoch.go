package measures

import (
	"fmt"
	"math"
	"strings"
)

const (
	SecondsPerDay = 86400.0
	// MJD of the J2000.0 epoch (2000-01-01T12:00:00 TT, treated as UTC here).
	MJDJ2000 = 51544.5
	// TAI - UTC since 2017-01-01.
	taiMinusUTC = 37.0
	ttMinusTAI  = 32.184
)

// TimeFrame is the time scale an epoch is expressed in.
type TimeFrame int

const (
	UTC TimeFrame = iota
	TAI
	TT
)

func (f TimeFrame) String() string {
	switch f {
	case TAI:
		return "TAI"
	case TT:
		return "TT"
	}
	return "UTC"
}

// ParseTimeFrame parses "UTC", "TAI" or "TT" (case-insensitive).
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UTC":
		return UTC, nil
	case "TAI":
		return TAI, nil
	case "TT", "TDT":
		return TT, nil
	}
	return UTC, fmt.Errorf("unknown time frame %q", s)
}

// Epoch is an instant as seconds since MJD 0 in a given time scale. This is
// the layout of the TIME column.
type Epoch struct {
	Seconds float64
	Frame   TimeFrame
}

// NewEpoch creates a UTC epoch from MJD seconds.
func NewEpoch(seconds float64) Epoch {
	return Epoch{Seconds: seconds, Frame: UTC}
}

// EpochFromMJD creates a UTC epoch from a (fractional) MJD day number.
func EpochFromMJD(mjd float64) Epoch {
	return Epoch{Seconds: mjd * SecondsPerDay, Frame: UTC}
}

// MJD returns the epoch as a fractional day number.
func (e Epoch) MJD() float64 {
	return e.Seconds / SecondsPerDay
}

func (e Epoch) offsetFromUTC() float64 {
	switch e.Frame {
	case TAI:
		return taiMinusUTC
	case TT:
		return taiMinusUTC + ttMinusTAI
	}
	return 0
}

// In converts the epoch to another time scale.
func (e Epoch) In(frame TimeFrame) Epoch {
	if frame == e.Frame {
		return e
	}
	utc := e.Seconds - e.offsetFromUTC()
	out := Epoch{Seconds: utc, Frame: frame}
	out.Seconds += out.offsetFromUTC()
	return out
}

// GMST returns the Greenwich mean sidereal time in radians, treating UTC
// as UT1.
func (e Epoch) GMST() float64 {
	d := e.In(UTC).MJD() - MJDJ2000
	deg := 280.46061837 + 360.98564736629*d
	return NormalizeAngle(deg * math.Pi / 180)
}

// LAST returns the local sidereal time at the given east longitude.
func (e Epoch) LAST(longitude float64) float64 {
	return NormalizeAngle(e.GMST() + longitude)
}

func (e Epoch) String() string {
	return fmt.Sprintf("%.3fs(%s)", e.Seconds, e.Frame)
}

// NormalizeAngle maps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
