// Package convert turns stored epochs, frequencies and directions into the
// frames and units an iterator's consumer asked for.
package convert

import (
	"fmt"
	"strings"

	"github.com/bisegni/visdata/pkg/measures"
)

// TimeUnit is the unit Converter.Epoch returns times in.
type TimeUnit string

const (
	Seconds TimeUnit = "s"
	Minutes TimeUnit = "min"
	Hours   TimeUnit = "h"
	Days    TimeUnit = "d"
)

// Scale returns the number of seconds in one unit.
func (u TimeUnit) Scale() (float64, error) {
	switch u {
	case Seconds, "":
		return 1, nil
	case Minutes:
		return 60, nil
	case Hours:
		return 3600, nil
	case Days:
		return measures.SecondsPerDay, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", string(u))
}

// VelocityUnit is the unit of Converter.Velocity results.
type VelocityUnit string

const (
	MetresPerSecond     VelocityUnit = "m/s"
	KilometresPerSecond VelocityUnit = "km/s"
)

func (u VelocityUnit) Scale() (float64, error) {
	switch strings.ToLower(string(u)) {
	case "m/s", "":
		return 1, nil
	case "km/s":
		return 1e3, nil
	}
	return 0, fmt.Errorf("unknown velocity unit %q", string(u))
}

// Converter holds the target frames and units. A zero Converter is the
// identity: seconds since MJD 0, frequencies in Hz in their stored frame,
// directions in their stored frame.
type Converter struct {
	epochOrigin measures.Epoch
	timeUnit    TimeUnit
	timeScale   float64

	freqFrame measures.FrequencyFrame
	freqUnit  measures.FrequencyUnit
	freqScale float64

	dirFrame *measures.DirectionFrame

	restFrequency float64
	velFrame      measures.FrequencyFrame
	velUnit       VelocityUnit
	velScale      float64

	frame measures.Frame
}

// NewConverter returns an identity converter.
func NewConverter() *Converter {
	return &Converter{timeUnit: Seconds, timeScale: 1, freqUnit: measures.Hz, freqScale: 1, velUnit: MetresPerSecond, velScale: 1}
}

// SetEpochFrame makes Epoch return times relative to origin in unit.
func (c *Converter) SetEpochFrame(origin measures.Epoch, unit TimeUnit) error {
	scale, err := unit.Scale()
	if err != nil {
		return err
	}
	c.epochOrigin, c.timeUnit, c.timeScale = origin, unit, scale
	return nil
}

// SetFrequencyFrame sets the frame and unit of returned frequencies. An
// undefined frame keeps the stored frame.
func (c *Converter) SetFrequencyFrame(frame measures.FrequencyFrame, unit measures.FrequencyUnit) error {
	scale, err := unit.Scale()
	if err != nil {
		return err
	}
	c.freqFrame, c.freqUnit, c.freqScale = frame, unit, scale
	return nil
}

// SetDirectionFrame sets the frame of returned directions.
func (c *Converter) SetDirectionFrame(frame measures.DirectionFrame) {
	c.dirFrame = &frame
}

// SetRestFrequency sets the rest frequency (Hz) used for velocities.
func (c *Converter) SetRestFrequency(hz float64) {
	c.restFrequency = hz
}

// SetVelocityFrame sets the frame and unit of returned velocities.
func (c *Converter) SetVelocityFrame(frame measures.FrequencyFrame, unit VelocityUnit) error {
	scale, err := unit.Scale()
	if err != nil {
		return err
	}
	c.velFrame, c.velUnit, c.velScale = frame, unit, scale
	return nil
}

// SetMeasFrame sets the epoch, position and direction used by conversions
// between observer dependent frames. The iterator calls it before
// converting frequencies of a chunk.
func (c *Converter) SetMeasFrame(frame measures.Frame) {
	c.frame = frame
}

// MeasFrame returns the frame set by SetMeasFrame.
func (c *Converter) MeasFrame() measures.Frame {
	return c.frame
}

// Epoch converts a TIME column value (UTC MJD seconds) to the target
// origin and unit.
func (c *Converter) Epoch(seconds float64) float64 {
	t := measures.NewEpoch(seconds).In(c.epochOrigin.Frame)
	return (t.Seconds - c.epochOrigin.Seconds) / c.scaleOrOne(c.timeScale)
}

// EpochMeasure converts a value returned by Epoch back to a UTC epoch.
func (c *Converter) EpochMeasure(t float64) measures.Epoch {
	e := measures.Epoch{Seconds: t*c.scaleOrOne(c.timeScale) + c.epochOrigin.Seconds, Frame: c.epochOrigin.Frame}
	return e.In(measures.UTC)
}

func (c *Converter) scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

// Frequency converts f to the target frame and unit.
func (c *Converter) Frequency(f measures.Frequency) (float64, error) {
	to := c.freqFrame
	if to == measures.FrequencyUndefined {
		to = f.Frame
	}
	hz, err := measures.ConvertFrequency(f.Hz, f.Frame, to, c.frame)
	if err != nil {
		return 0, err
	}
	return hz / c.scaleOrOne(c.freqScale), nil
}

// FrequencyFrame returns the target frequency frame and unit.
func (c *Converter) FrequencyFrame() (measures.FrequencyFrame, measures.FrequencyUnit) {
	return c.freqFrame, c.freqUnit
}

// ToFrequency converts a value in the target frame and unit back to Hz in
// the given frame, the inverse of Frequency.
func (c *Converter) ToFrequency(v float64, to measures.FrequencyFrame) (float64, error) {
	from := c.freqFrame
	if from == measures.FrequencyUndefined {
		from = to
	}
	return measures.ConvertFrequency(v*c.scaleOrOne(c.freqScale), from, to, c.frame)
}

// IsVoid reports whether converting frequencies stored in frame and unit
// would leave them unchanged.
func (c *Converter) IsVoid(frame measures.FrequencyFrame, unit measures.FrequencyUnit) bool {
	if c.freqFrame != measures.FrequencyUndefined && c.freqFrame != frame {
		return false
	}
	stored, err := unit.Scale()
	if err != nil {
		return false
	}
	return stored == c.scaleOrOne(c.freqScale)
}

// Direction converts d to the target direction frame.
func (c *Converter) Direction(d measures.Direction) (measures.Direction, error) {
	if c.dirFrame == nil || *c.dirFrame == d.Frame {
		return d, nil
	}
	return d.Convert(*c.dirFrame, c.frame)
}

// Velocity returns the radio velocity of f with respect to the rest
// frequency, in the velocity frame and unit.
func (c *Converter) Velocity(f measures.Frequency) (float64, error) {
	if c.restFrequency <= 0 {
		return 0, fmt.Errorf("velocity conversion requires a rest frequency")
	}
	to := c.velFrame
	if to == measures.FrequencyUndefined {
		to = f.Frame
	}
	hz, err := measures.ConvertFrequency(f.Hz, f.Frame, to, c.frame)
	if err != nil {
		return 0, err
	}
	return measures.RadioVelocity(hz, c.restFrequency) / c.scaleOrOne(c.velScale), nil
}

// Clone returns an independent copy.
func (c *Converter) Clone() *Converter {
	out := *c
	if c.dirFrame != nil {
		f := *c.dirFrame
		out.dirFrame = &f
	}
	return &out
}

func (c *Converter) String() string {
	dir := "native"
	if c.dirFrame != nil {
		dir = c.dirFrame.String()
	}
	freq := "native"
	if c.freqFrame != measures.FrequencyUndefined {
		freq = c.freqFrame.String()
	}
	return fmt.Sprintf("epoch=%s/%s freq=%s/%s dir=%s", c.epochOrigin, c.timeUnit, freq, c.freqUnit, dir)
}
