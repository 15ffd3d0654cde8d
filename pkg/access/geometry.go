package access

import (
	"errors"
	"math"

	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

// paThreshold is the parallactic angle (radians) below which beam offsets
// are used unrotated.
const paThreshold = 1e-9

// storedFrequencies returns the channel axis of the current spectral
// window in the table unit, and the number of Hz per unit.
func (it *Iterator) storedFrequencies() ([]float64, float64, error) {
	freqs, err := it.info.SpWindows.Frequencies(it.spw)
	if err != nil {
		return nil, 0, err
	}
	scale, err := it.info.SpWindows.FrequencyUnit().Scale()
	if err != nil {
		return nil, 0, err
	}
	return freqs, scale, nil
}

// referenceDir returns the phase centre of the current chunk.
func (it *Iterator) referenceDir() (measures.Direction, error) {
	if it.useFieldID {
		return it.info.Fields.ReferenceDirByID(it.field)
	}
	return it.info.Fields.ReferenceDir(it.epoch())
}

// measFrame is the frame frequency conversions are done in: the chunk
// epoch, the position of antenna 0 and the phase centre.
func (it *Iterator) measFrame() (measures.Frame, error) {
	pos, err := it.info.Antennas.Position(0)
	if err != nil {
		return measures.Frame{}, err
	}
	dir, err := it.referenceDir()
	if err != nil {
		return measures.Frame{}, err
	}
	return measures.NewFrame(it.epoch(), pos).WithDirection(dir), nil
}

func (it *Iterator) fillFrequency(out *[]float64) error {
	freqs, scale, err := it.storedFrequencies()
	if err != nil {
		return err
	}
	frame, err := it.info.SpWindows.ReferenceFrame(it.spw)
	if err != nil {
		return err
	}
	if it.conv.IsVoid(frame, it.info.SpWindows.FrequencyUnit()) && !it.sel.ChannelsSelected() && !it.sel.FrequenciesSelected() {
		if len(freqs) != it.nChan {
			return errs.ShapeMismatch("spectral window %d has %d channels, data has %d", it.spw, len(freqs), it.nChan)
		}
		*out = freqs
		return nil
	}

	mf, err := it.measFrame()
	if err != nil {
		return err
	}
	it.conv.SetMeasFrame(mf)
	res := make([]float64, it.nChanSel)
	for ch := range res {
		v, err := it.conv.Frequency(measures.Frequency{Hz: freqs[ch+it.startChan] * scale, Frame: frame})
		if err != nil {
			return errs.MetadataLookup("cannot convert frequency: %v", err).WithChannel(ch + it.startChan)
		}
		res[ch] = v
	}
	*out = res
	return nil
}

func (it *Iterator) fillVelocity(out *[]float64) error {
	freqs, scale, err := it.storedFrequencies()
	if err != nil {
		return err
	}
	frame, err := it.info.SpWindows.ReferenceFrame(it.spw)
	if err != nil {
		return err
	}
	mf, err := it.measFrame()
	if err != nil {
		return err
	}
	it.conv.SetMeasFrame(mf)
	res := make([]float64, it.nChanSel)
	for ch := range res {
		v, err := it.conv.Velocity(measures.Frequency{Hz: freqs[ch+it.startChan] * scale, Frame: frame})
		if err != nil {
			return errs.MetadataLookup("cannot convert velocity: %v", err).WithChannel(ch + it.startChan)
		}
		res[ch] = v
	}
	*out = res
	return nil
}

func (it *Iterator) fillStokes(out *[]measures.Stokes) error {
	*out = append((*out)[:0], it.types...)
	return nil
}

// parallacticAngles returns the parallactic angle of every antenna for
// the current chunk.
func (it *Iterator) parallacticAngles() ([]float64, error) {
	return it.pa.Value(func(out *[]float64) error {
		n := it.info.Antennas.NumberOfAntennas()
		res := make([]float64, n)
		if it.info.Antennas.AllEquatorial() {
			*out = res
			return nil
		}
		dir, err := it.referenceDir()
		if err != nil {
			return err
		}
		epoch := it.epoch()
		for ant := range res {
			mount, err := it.info.Antennas.Mount(ant)
			if err != nil {
				return err
			}
			pos, err := it.info.Antennas.Position(ant)
			if err != nil {
				return err
			}
			pa, err := measures.ParallacticAngle(mount, dir, epoch, pos)
			if err != nil {
				return errs.MetadataLookup("cannot compute parallactic angle: %v", err).WithAntenna(ant, errs.NoIndex)
			}
			res[ant] = pa
		}
		*out = res
		return nil
	})
}

// beamDirections returns the pointing of every feed slot of the feed
// handler for the current chunk.
func (it *Iterator) beamDirections() ([]measures.Direction, error) {
	return it.directions.Value(func(out *[]measures.Direction) error {
		epoch := it.epoch()
		antIDs, err := it.info.Feeds.AntennaIDs(epoch, it.spw)
		if err != nil {
			return err
		}
		offsets, err := it.info.Feeds.AllBeamOffsets(epoch, it.spw)
		if err != nil {
			return err
		}
		if it.allOffsetsZero, err = it.info.Feeds.AllOffsetsZero(epoch, it.spw); err != nil {
			return err
		}
		pas, err := it.parallacticAngles()
		if err != nil {
			return err
		}
		dir, err := it.referenceDir()
		if err != nil {
			return err
		}

		res := make([]measures.Direction, len(antIDs))
		for i, ant := range antIDs {
			if ant < 0 || ant >= len(pas) {
				return errs.MetadataLookup("feed references an antenna outside the ANTENNA subtable").WithAntenna(ant, errs.NoIndex)
			}
			off := offsets[i]
			if pa := pas[ant]; math.Abs(pa) > paThreshold {
				s, c := math.Sincos(pa)
				off = [2]float64{c*off[0] - s*off[1], s*off[0] + c*off[1]}
			}
			pos, err := it.info.Antennas.Position(ant)
			if err != nil {
				return err
			}
			it.conv.SetMeasFrame(measures.NewFrame(epoch, pos))
			d, err := it.conv.Direction(dir.Shift(-off[0], off[1], true))
			if err != nil {
				return errs.MetadataLookup("cannot convert pointing direction: %v", err).WithAntenna(ant, errs.NoIndex)
			}
			res[i] = d
		}
		*out = res
		return nil
	})
}

// dishDirections returns the dish pointing of every antenna.
func (it *Iterator) dishDirections() ([]measures.Direction, error) {
	return it.dish.Value(func(out *[]measures.Direction) error {
		dir, err := it.referenceDir()
		if err != nil {
			return err
		}
		epoch := it.epoch()
		res := make([]measures.Direction, it.info.Antennas.NumberOfAntennas())
		for ant := range res {
			pos, err := it.info.Antennas.Position(ant)
			if err != nil {
				return err
			}
			it.conv.SetMeasFrame(measures.NewFrame(epoch, pos))
			d, err := it.conv.Direction(dir)
			if err != nil {
				return errs.MetadataLookup("cannot convert dish pointing: %v", err).WithAntenna(ant, errs.NoIndex)
			}
			res[ant] = d
		}
		*out = res
		return nil
	})
}

func (it *Iterator) fillPointing(out *[]measures.Direction, ants, feeds []int) error {
	dirs, err := it.beamDirections()
	if err != nil {
		return err
	}
	epoch := it.epoch()
	res := (*out)[:0]
	for i, ant := range ants {
		slot, err := it.info.Feeds.Index(epoch, it.spw, ant, feeds[i])
		if err != nil {
			var e *errs.Error
			if errors.As(err, &e) {
				return e.WithRow(it.group[it.topRow+i].index)
			}
			return err
		}
		if slot < 0 || slot >= len(dirs) {
			return errs.MetadataLookup("feed slot %d outside the direction cache", slot).WithAntenna(ant, feeds[i])
		}
		res = append(res, dirs[slot])
	}
	*out = res
	return nil
}

func (it *Iterator) fillDishPointing(out *[]measures.Direction, ants []int) error {
	dirs, err := it.dishDirections()
	if err != nil {
		return err
	}
	res := (*out)[:0]
	for _, ant := range ants {
		if ant < 0 || ant >= len(dirs) {
			return errs.MetadataLookup("antenna outside the ANTENNA subtable").WithAntenna(ant, errs.NoIndex)
		}
		res = append(res, dirs[ant])
	}
	*out = res
	return nil
}

func (it *Iterator) fillFeedPA(out *[]float64, ants, feeds []int) error {
	pas, err := it.parallacticAngles()
	if err != nil {
		return err
	}
	epoch := it.epoch()
	res := (*out)[:0]
	for i, ant := range ants {
		if ant < 0 || ant >= len(pas) {
			return errs.MetadataLookup("antenna outside the ANTENNA subtable").WithAntenna(ant, feeds[i])
		}
		beamPA, err := it.info.Feeds.BeamPA(epoch, it.spw, ant, feeds[i])
		if err != nil {
			return err
		}
		res = append(res, beamPA+pas[ant])
	}
	*out = res
	return nil
}
