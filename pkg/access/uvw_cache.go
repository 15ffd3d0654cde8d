package access

import (
	"fmt"

	"github.com/bisegni/visdata/pkg/measures"
)

type mat3 = [3][3]float64

func mul(a, b mat3) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func transpose(a mat3) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[j][i]
		}
	}
	return out
}

func apply(m mat3, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// uvwMachine rotates uvw coordinates from one phase centre to a tangent
// point.
type uvwMachine struct {
	phase   measures.Direction
	tangent measures.Direction
	// toWorld takes uvw at the phase centre to cartesian coordinates.
	toWorld mat3
	rotate  mat3
}

func newUVWMachine(phase, tangent measures.Direction) *uvwMachine {
	toWorld := transpose(phase.UVWBasis())
	return &uvwMachine{
		phase:   phase,
		tangent: tangent,
		toWorld: toWorld,
		rotate:  mul(tangent.UVWBasis(), toWorld),
	}
}

// UVWRotationCache keeps the most recently used rotation machines. Two
// directions closer than the tolerance share a machine.
type UVWRotationCache struct {
	size      int
	tolerance float64
	// machines is ordered from most to least recently used.
	machines []*uvwMachine

	hits   int
	misses int
}

func NewUVWRotationCache(size int, tolerance float64) *UVWRotationCache {
	if size < 1 {
		size = 1
	}
	return &UVWRotationCache{size: size, tolerance: tolerance}
}

func (c *UVWRotationCache) machine(phase, tangent measures.Direction) *uvwMachine {
	for i, m := range c.machines {
		if m.phase.Separation(phase) <= c.tolerance && m.tangent.Separation(tangent) <= c.tolerance {
			copy(c.machines[1:i+1], c.machines[:i])
			c.machines[0] = m
			c.hits++
			return m
		}
	}
	c.misses++
	m := newUVWMachine(phase, tangent)
	if len(c.machines) < c.size {
		c.machines = append(c.machines, nil)
	}
	copy(c.machines[1:], c.machines[:len(c.machines)-1])
	c.machines[0] = m
	return m
}

func checkFrames(phase, tangent measures.Direction, row int) error {
	if phase.Frame != tangent.Frame {
		return fmt.Errorf("row %d: pointing is in %s, tangent point in %s", row, phase.Frame, tangent.Frame)
	}
	return nil
}

// Rotate returns the uvw of every row of acc rotated from the pointing of
// its first feed to tangent.
func (c *UVWRotationCache) Rotate(acc ConstAccessor, tangent measures.Direction) ([][3]float64, error) {
	uvw := acc.UVW()
	phases, err := acc.PointingDir1()
	if err != nil {
		return nil, err
	}
	out := make([][3]float64, len(uvw))
	for i := range uvw {
		if err := checkFrames(phases[i], tangent, i); err != nil {
			return nil, err
		}
		out[i] = apply(c.machine(phases[i], tangent).rotate, uvw[i])
	}
	return out, nil
}

// Delays returns per row the w difference (metres) between the baseline
// projected towards imageCentre and towards tangent.
func (c *UVWRotationCache) Delays(acc ConstAccessor, tangent, imageCentre measures.Direction) ([]float64, error) {
	uvw := acc.UVW()
	phases, err := acc.PointingDir1()
	if err != nil {
		return nil, err
	}
	image := imageCentre.UVWBasis()
	out := make([]float64, len(uvw))
	for i := range uvw {
		if err := checkFrames(phases[i], tangent, i); err != nil {
			return nil, err
		}
		m := c.machine(phases[i], tangent)
		toImage := apply(mul(image, m.toWorld), uvw[i])
		out[i] = toImage[2] - apply(m.rotate, uvw[i])[2]
	}
	return out, nil
}

// Stats returns the number of machine lookups served from the cache and
// the number of machines built.
func (c *UVWRotationCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
