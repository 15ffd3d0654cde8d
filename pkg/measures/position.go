package measures

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

// EarthRotationRate is the sidereal rotation rate in rad/s.
const EarthRotationRate = 7.292115e-5

// Position is an ITRF geocentric position in metres.
type Position struct {
	X, Y, Z float64
}

// Geodetic returns east longitude and geodetic latitude (radians) and the
// height above the WGS84 ellipsoid (metres), using Bowring's method.
func (p Position) Geodetic() (lon, lat, height float64) {
	e2 := wgs84F * (2 - wgs84F)
	b := wgs84A * (1 - wgs84F)
	ep2 := (wgs84A*wgs84A - b*b) / (b * b)

	r := math.Hypot(p.X, p.Y)
	lon = math.Atan2(p.Y, p.X)
	if r == 0 {
		if p.Z >= 0 {
			return lon, math.Pi / 2, p.Z - b
		}
		return lon, -math.Pi / 2, -p.Z - b
	}
	theta := math.Atan2(p.Z*wgs84A, r*b)
	st, ct := math.Sincos(theta)
	lat = math.Atan2(p.Z+ep2*b*st*st*st, r-e2*wgs84A*ct*ct*ct)
	sl, cl := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-e2*sl*sl)
	height = r/cl - n
	return lon, lat, height
}

// Sub returns p - o.
func (p Position) Sub(o Position) Position {
	return Position{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Length returns the distance from the geocentre.
func (p Position) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

func (p Position) String() string {
	return fmt.Sprintf("[%.3f, %.3f, %.3f]m", p.X, p.Y, p.Z)
}

// Frame carries the optional epoch, position and direction needed by
// conversions that depend on the observer.
type Frame struct {
	Epoch     *Epoch
	Position  *Position
	Direction *Direction
}

// NewFrame builds a frame from the values given; zero values are left unset.
func NewFrame(epoch Epoch, pos Position) Frame {
	return Frame{Epoch: &epoch, Position: &pos}
}

// WithDirection returns a copy of f with the direction set.
func (f Frame) WithDirection(d Direction) Frame {
	f.Direction = &d
	return f
}
