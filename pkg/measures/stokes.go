package measures

import (
	"fmt"
	"strings"
)

// Stokes identifies a polarisation product. Values follow the
// measurement-set correlation type codes.
type Stokes int

const (
	StokesUndefined Stokes = 0
	StokesI         Stokes = 1
	StokesQ         Stokes = 2
	StokesU         Stokes = 3
	StokesV         Stokes = 4
	StokesRR        Stokes = 5
	StokesRL        Stokes = 6
	StokesLR        Stokes = 7
	StokesLL        Stokes = 8
	StokesXX        Stokes = 9
	StokesXY        Stokes = 10
	StokesYX        Stokes = 11
	StokesYY        Stokes = 12
)

var stokesNames = map[Stokes]string{
	StokesI: "I", StokesQ: "Q", StokesU: "U", StokesV: "V",
	StokesRR: "RR", StokesRL: "RL", StokesLR: "LR", StokesLL: "LL",
	StokesXX: "XX", StokesXY: "XY", StokesYX: "YX", StokesYY: "YY",
}

func (s Stokes) String() string {
	if n, ok := stokesNames[s]; ok {
		return n
	}
	return "Undefined"
}

// ParseStokes parses a single product name.
func ParseStokes(name string) (Stokes, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for s, n := range stokesNames {
		if n == name {
			return s, nil
		}
	}
	return StokesUndefined, fmt.Errorf("unknown polarisation product %q", name)
}

// ParseStokesList parses products separated by commas or spaces, e.g.
// "XX,YY" or "XX XY YX YY".
func ParseStokesList(s string) ([]Stokes, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty polarisation list")
	}
	out := make([]Stokes, 0, len(fields))
	for _, f := range fields {
		st, err := ParseStokes(f)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// FormatStokesList joins products with commas.
func FormatStokesList(list []Stokes) string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
