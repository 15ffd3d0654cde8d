package measures

import (
	"fmt"
	"math"
	"strings"
)

// DirectionFrame is the reference frame of a sky direction.
type DirectionFrame int

const (
	J2000 DirectionFrame = iota
	HADEC
	AZEL
)

func (f DirectionFrame) String() string {
	switch f {
	case HADEC:
		return "HADEC"
	case AZEL:
		return "AZEL"
	}
	return "J2000"
}

// ParseDirectionFrame parses a frame name (case-insensitive).
func ParseDirectionFrame(s string) (DirectionFrame, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "J2000":
		return J2000, nil
	case "HADEC":
		return HADEC, nil
	case "AZEL", "AZELGEO":
		return AZEL, nil
	}
	return J2000, fmt.Errorf("unknown direction frame %q", s)
}

// Direction is a longitude/latitude pair (radians) in a frame. For J2000 the
// pair is (RA, Dec); for HADEC (hour angle, Dec); for AZEL (azimuth from
// north through east, elevation).
type Direction struct {
	Lon, Lat float64
	Frame    DirectionFrame
}

// NewDirection creates a J2000 direction.
func NewDirection(ra, dec float64) Direction {
	return Direction{Lon: ra, Lat: dec, Frame: J2000}
}

// DirectionFromVector builds a direction from a (not necessarily unit)
// cartesian vector.
func DirectionFromVector(v [3]float64, frame DirectionFrame) Direction {
	return Direction{
		Lon:   NormalizeAngle(math.Atan2(v[1], v[0])),
		Lat:   math.Atan2(v[2], math.Hypot(v[0], v[1])),
		Frame: frame,
	}
}

// Vector returns the unit cartesian vector of the direction.
func (d Direction) Vector() [3]float64 {
	sl, cl := math.Sincos(d.Lon)
	sb, cb := math.Sincos(d.Lat)
	return [3]float64{cb * cl, cb * sl, sb}
}

// Separation returns the angle between two directions of the same frame.
func (d Direction) Separation(o Direction) float64 {
	a, b := d.Vector(), o.Vector()
	cross := [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	return math.Atan2(math.Sqrt(cross[0]*cross[0]+cross[1]*cross[1]+cross[2]*cross[2]), dot)
}

// Shift offsets the direction by dLon and dLat. With trueAngle the
// longitude offset is an angle on the sky and is scaled by the secant of
// the new latitude.
func (d Direction) Shift(dLon, dLat float64, trueAngle bool) Direction {
	lat := d.Lat + dLat
	if trueAngle {
		if c := math.Cos(lat); math.Abs(c) > 1e-15 {
			dLon /= c
		}
	}
	out := Direction{Lon: d.Lon + dLon, Lat: lat, Frame: d.Frame}
	// fold back over the pole
	if out.Lat > math.Pi/2 {
		out.Lat = math.Pi - out.Lat
		out.Lon += math.Pi
	} else if out.Lat < -math.Pi/2 {
		out.Lat = -math.Pi - out.Lat
		out.Lon += math.Pi
	}
	out.Lon = NormalizeAngle(out.Lon)
	return out
}

// PositionAngle returns the position angle of o as seen from d, measured
// from the latitude pole through increasing longitude.
func (d Direction) PositionAngle(o Direction) float64 {
	dl := o.Lon - d.Lon
	sdl, cdl := math.Sincos(dl)
	s1, c1 := math.Sincos(d.Lat)
	s2, c2 := math.Sincos(o.Lat)
	return math.Atan2(sdl*c2, c1*s2-s1*c2*cdl)
}

// UVWBasis returns the matrix whose rows are the u, v and w unit vectors
// for a tangent point at d, expressed in the cartesian frame of d.
func (d Direction) UVWBasis() [3][3]float64 {
	sa, ca := math.Sincos(d.Lon)
	sd, cd := math.Sincos(d.Lat)
	return [3][3]float64{
		{-sa, ca, 0},
		{-sd * ca, -sd * sa, cd},
		{cd * ca, cd * sa, sd},
	}
}

// Convert returns d expressed in another frame. Conversions between
// frames need the epoch and position of the frame; J2000 is treated as
// the apparent equator of date.
func (d Direction) Convert(to DirectionFrame, frame Frame) (Direction, error) {
	if to == d.Frame {
		return d, nil
	}
	if frame.Epoch == nil || frame.Position == nil {
		return d, fmt.Errorf("conversion %s->%s requires epoch and position", d.Frame, to)
	}
	lon, lat, _ := frame.Position.Geodetic()
	last := frame.Epoch.LAST(lon)

	// go through HADEC
	var ha, dec float64
	switch d.Frame {
	case J2000:
		ha, dec = NormalizeAngle(last-d.Lon), d.Lat
	case HADEC:
		ha, dec = d.Lon, d.Lat
	case AZEL:
		ha, dec = azelToHADec(d.Lon, d.Lat, lat)
	}

	switch to {
	case J2000:
		return Direction{Lon: NormalizeAngle(last - ha), Lat: dec, Frame: J2000}, nil
	case HADEC:
		return Direction{Lon: NormalizeAngle(ha), Lat: dec, Frame: HADEC}, nil
	case AZEL:
		az, el := haDecToAzEl(ha, dec, lat)
		return Direction{Lon: az, Lat: el, Frame: AZEL}, nil
	}
	return d, fmt.Errorf("unsupported direction frame %v", to)
}

func haDecToAzEl(ha, dec, lat float64) (az, el float64) {
	sh, ch := math.Sincos(ha)
	sd, cd := math.Sincos(dec)
	sp, cp := math.Sincos(lat)
	el = math.Asin(clamp(sp*sd + cp*cd*ch))
	az = NormalizeAngle(math.Atan2(-cd*sh, sd*cp-cd*ch*sp))
	return az, el
}

func azelToHADec(az, el, lat float64) (ha, dec float64) {
	sa, ca := math.Sincos(az)
	se, ce := math.Sincos(el)
	sp, cp := math.Sincos(lat)
	dec = math.Asin(clamp(sp*se + cp*ce*ca))
	ha = NormalizeAngle(math.Atan2(-ce*sa, se*cp-ce*ca*sp))
	return ha, dec
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func (d Direction) String() string {
	return fmt.Sprintf("[%.6f, %.6f](%s)", d.Lon, d.Lat, d.Frame)
}
