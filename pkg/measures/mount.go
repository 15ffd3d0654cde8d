package measures

import (
	"fmt"
	"math"
	"strings"
)

// Mount is an antenna mount type as stored in the antenna table.
type Mount string

const (
	MountEquatorial Mount = "EQUATORIAL"
	MountAltAz      Mount = "ALT-AZ"
	MountFixed      Mount = "FIXED"
	MountXY         Mount = "X-Y"
)

// Normalize returns the canonical upper-case spelling of m.
func (m Mount) Normalize() Mount {
	return Mount(strings.ToUpper(strings.TrimSpace(string(m))))
}

// Known reports whether m is one of the supported mount types.
func (m Mount) Known() bool {
	switch m.Normalize() {
	case MountEquatorial, MountAltAz, MountFixed, MountXY:
		return true
	}
	return false
}

// ParallacticAngle returns the rotation of the sky relative to the antenna
// for a source at dir observed at epoch from pos. It is zero for
// equatorial, fixed and X-Y mounts.
func ParallacticAngle(mount Mount, dir Direction, epoch Epoch, pos Position) (float64, error) {
	switch mount.Normalize() {
	case MountEquatorial, MountFixed, MountXY:
		return 0, nil
	case MountAltAz:
	default:
		return 0, fmt.Errorf("unknown mount type %q", string(mount))
	}

	hadec, err := dir.Convert(HADEC, NewFrame(epoch, pos))
	if err != nil {
		return 0, err
	}
	_, lat, _ := pos.Geodetic()
	sh, ch := math.Sincos(hadec.Lon)
	sd, cd := math.Sincos(hadec.Lat)
	sp, cp := math.Sincos(lat)
	return math.Atan2(sh*cp, sp*cd-cp*sd*ch), nil
}
