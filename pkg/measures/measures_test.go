package measures

import (
	"math"
	"testing"
)

var askapAntenna = Position{X: -2556084.669, Y: 5097398.337, Z: -2848424.133}

const deg = math.Pi / 180

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestGeodetic(t *testing.T) {
	lon, lat, h := askapAntenna.Geodetic()
	if !near(lon/deg, 116.63, 0.01) {
		t.Errorf("longitude = %f deg", lon/deg)
	}
	if !near(lat/deg, -26.70, 0.01) {
		t.Errorf("latitude = %f deg", lat/deg)
	}
	if h < 0 || h > 1000 {
		t.Errorf("height = %f m", h)
	}
}

func TestEpochFrames(t *testing.T) {
	e := EpochFromMJD(55000.25)
	tai := e.In(TAI)
	if !near(tai.Seconds-e.Seconds, 37, 1e-9) {
		t.Errorf("TAI offset = %f", tai.Seconds-e.Seconds)
	}
	back := tai.In(TT).In(UTC)
	if !near(back.Seconds, e.Seconds, 1e-6) {
		t.Errorf("round trip drifted: %f vs %f", back.Seconds, e.Seconds)
	}
	if !near(e.MJD(), 55000.25, 1e-12) {
		t.Errorf("MJD = %f", e.MJD())
	}
}

func TestDirectionRoundTrip(t *testing.T) {
	epoch := EpochFromMJD(56000.1)
	frame := NewFrame(epoch, askapAntenna)
	src := NewDirection(187.5*deg, -45*deg)

	for _, to := range []DirectionFrame{HADEC, AZEL} {
		conv, err := src.Convert(to, frame)
		if err != nil {
			t.Fatalf("convert to %s: %v", to, err)
		}
		back, err := conv.Convert(J2000, frame)
		if err != nil {
			t.Fatalf("convert back from %s: %v", to, err)
		}
		if sep := back.Separation(src); sep > 1e-9 {
			t.Errorf("%s round trip separation %g rad", to, sep)
		}
	}

	if _, err := src.Convert(AZEL, Frame{}); err == nil {
		t.Errorf("conversion without frame should fail")
	}
}

func TestShiftAndSeparation(t *testing.T) {
	d := NewDirection(1.0, -0.5)
	shifted := d.Shift(0.01, 0, true)
	if sep := shifted.Separation(d); !near(sep, 0.01, 1e-4) {
		t.Errorf("true-angle shift separation = %g", sep)
	}
	up := d.Shift(0, 0.02, true)
	if sep := up.Separation(d); !near(sep, 0.02, 1e-12) {
		t.Errorf("latitude shift separation = %g", sep)
	}
	if pa := d.PositionAngle(up); !near(pa, 0, 1e-12) {
		t.Errorf("position angle of a northward offset = %g", pa)
	}
}

func TestUVWBasisOrthonormal(t *testing.T) {
	m := NewDirection(2.1, 0.3).UVWBasis()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := m[i][0]*m[j][0] + m[i][1]*m[j][1] + m[i][2]*m[j][2]
			want := 0.0
			if i == j {
				want = 1
			}
			if !near(dot, want, 1e-12) {
				t.Errorf("row %d . row %d = %g", i, j, dot)
			}
		}
	}
	w := NewDirection(2.1, 0.3).Vector()
	for k := 0; k < 3; k++ {
		if !near(m[2][k], w[k], 1e-12) {
			t.Errorf("w axis differs from direction vector")
		}
	}
}

func TestParallacticAngle(t *testing.T) {
	epoch := EpochFromMJD(56000.1)
	lon, _, _ := askapAntenna.Geodetic()
	onMeridian := NewDirection(epoch.LAST(lon), -50*deg)

	tests := []struct {
		name    string
		mount   Mount
		dir     Direction
		wantErr bool
		check   func(float64) bool
	}{
		{"equatorial", MountEquatorial, onMeridian, false, func(a float64) bool { return a == 0 }},
		{"fixed lowercase", "fixed", onMeridian, false, func(a float64) bool { return a == 0 }},
		{"x-y", MountXY, onMeridian, false, func(a float64) bool { return a == 0 }},
		{"alt-az transit", MountAltAz, onMeridian, false, func(a float64) bool { return near(a, 0, 1e-9) }},
		{"alt-az east", "alt-az", onMeridian.Shift(1.0, 0, false), false, func(a float64) bool { return math.Abs(a) > 0.1 }},
		{"unknown", "GIMBAL", onMeridian, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, err := ParallacticAngle(tt.mount, tt.dir, epoch, askapAntenna)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(pa) {
				t.Errorf("unexpected parallactic angle %g", pa)
			}
		})
	}
}

func TestFrequencyConversion(t *testing.T) {
	epoch := EpochFromMJD(56000.1)
	frame := NewFrame(epoch, askapAntenna).WithDirection(NewDirection(3.0, -0.8))
	const f = 1.4e9

	same, err := ConvertFrequency(f, TOPO, TOPO, Frame{})
	if err != nil || same != f {
		t.Fatalf("identity conversion = %v, %v", same, err)
	}

	bary, err := ConvertFrequency(f, TOPO, BARY, frame)
	if err != nil {
		t.Fatalf("TOPO->BARY: %v", err)
	}
	// orbital plus rotational velocity keeps the shift well under 2e-4
	if math.Abs(bary/f-1) > 2e-4 || bary == f {
		t.Errorf("implausible BARY frequency %f", bary)
	}
	back, err := ConvertFrequency(bary, BARY, TOPO, frame)
	if err != nil {
		t.Fatalf("BARY->TOPO: %v", err)
	}
	if !near(back, f, 1e-3) {
		t.Errorf("round trip %f vs %f", back, f)
	}

	if _, err := ConvertFrequency(f, TOPO, LSRK, NewFrame(epoch, askapAntenna)); err == nil {
		t.Errorf("conversion without direction should fail")
	}
}

func TestUnitsAndStokes(t *testing.T) {
	u, err := ParseFrequencyUnit("mhz")
	if err != nil || u != MHz {
		t.Fatalf("ParseFrequencyUnit = %v, %v", u, err)
	}
	if s, _ := u.Scale(); s != 1e6 {
		t.Errorf("scale = %g", s)
	}
	if _, err := FrequencyUnit("THz").Scale(); err == nil {
		t.Errorf("THz should be rejected")
	}

	list, err := ParseStokesList("xx, yy")
	if err != nil {
		t.Fatalf("ParseStokesList: %v", err)
	}
	if len(list) != 2 || list[0] != StokesXX || list[1] != StokesYY {
		t.Errorf("unexpected list %v", list)
	}
	if FormatStokesList(list) != "XX,YY" {
		t.Errorf("FormatStokesList = %s", FormatStokesList(list))
	}
	if _, err := ParseStokesList("XX,ZZ"); err == nil {
		t.Errorf("ZZ should be rejected")
	}
	if v := RadioVelocity(1.4e9, 1.4e9); v != 0 {
		t.Errorf("velocity at rest frequency = %g", v)
	}
}
