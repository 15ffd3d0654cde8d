package access

import (
	"math"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

// copyWindow copies channels [start, start+nChan) of a channel-major row
// slice into dst, keeping the polarisations listed in polIndex (all of
// them when polIndex is nil).
func copyWindow[T any](dst, src []T, nPol, start, nChan int, polIndex []int) {
	if polIndex == nil {
		copy(dst, src[start*nPol:(start+nChan)*nPol])
		return
	}
	k := 0
	for ch := start; ch < start+nChan; ch++ {
		for _, p := range polIndex {
			dst[k] = src[ch*nPol+p]
			k++
		}
	}
}

// mergeWindow is the inverse of copyWindow: it returns a copy of the
// channel window of src with the selected polarisations replaced by sel.
func mergeWindow[T any](src, sel []T, nPol, start, nChan int, polIndex []int) []T {
	out := make([]T, nChan*nPol)
	if polIndex == nil {
		copy(out, sel)
		return out
	}
	copy(out, src[start*nPol:(start+nChan)*nPol])
	k := 0
	for ch := 0; ch < nChan; ch++ {
		for _, p := range polIndex {
			out[ch*nPol+p] = sel[k]
			k++
		}
	}
	return out
}

func resizeCube[T any](c **database.Cube[T], nRow, nChan, nPol int) {
	if *c == nil {
		*c = database.NewCube[T](nRow, nChan, nPol)
		return
	}
	(*c).Resize(nRow, nChan, nPol)
}

func (it *Iterator) checkRowShape(r groupRow) error {
	if r.row.NChan != it.nChan || r.row.NPol != it.nPol {
		return errs.ShapeMismatch("row shape %dx%d differs from chunk shape %dx%d",
			r.row.NChan, r.row.NPol, it.nChan, it.nPol).WithRow(r.index)
	}
	return nil
}

func (it *Iterator) fillCube(c **database.Cube[complex64], column string) error {
	rows := it.chunkRows()
	resizeCube(c, len(rows), it.nChanSel, it.nPolSel)
	for i, r := range rows {
		if err := it.checkRowShape(r); err != nil {
			return err
		}
		data, ok := r.row.Data[column]
		if !ok {
			return errs.IO(nil, "column %s missing", column).WithRow(r.index)
		}
		copyWindow((*c).RowSlice(i), data, it.nPol, it.startChan, it.nChanSel, it.polIndex)
	}
	return nil
}

func (it *Iterator) fillFlag(c **database.Cube[bool]) error {
	rows := it.chunkRows()
	resizeCube(c, len(rows), it.nChanSel, it.nPolSel)
	if it.flagData {
		(*c).Fill(true)
		return nil
	}
	for i, r := range rows {
		if err := it.checkRowShape(r); err != nil {
			return err
		}
		dst := (*c).RowSlice(i)
		switch {
		case r.row.FlagRow:
			for k := range dst {
				dst[k] = true
			}
		case r.row.Flag == nil:
			for k := range dst {
				dst[k] = false
			}
		default:
			copyWindow(dst, r.row.Flag, it.nPol, it.startChan, it.nChanSel, it.polIndex)
		}
	}
	return nil
}

func (it *Iterator) fillNoise(c **database.Cube[complex64]) error {
	rows := it.chunkRows()
	resizeCube(c, len(rows), it.nChanSel, it.nPolSel)
	n := it.nChan * it.nPol
	for i, r := range rows {
		if err := it.checkRowShape(r); err != nil {
			return err
		}
		dst := (*c).RowSlice(i)
		var sigma []float32
		switch {
		case len(r.row.SigmaSpectrum) == n:
			sigma = make([]float32, len(dst))
			copyWindow(sigma, r.row.SigmaSpectrum, it.nPol, it.startChan, it.nChanSel, it.polIndex)
		case len(r.row.Sigma) == n:
			sigma = make([]float32, len(dst))
			copyWindow(sigma, r.row.Sigma, it.nPol, it.startChan, it.nChanSel, it.polIndex)
		case len(r.row.Sigma) == it.nPol:
			sigma = make([]float32, len(dst))
			perPol := make([]float32, it.nPolSel)
			copyWindow(perPol, r.row.Sigma, it.nPol, 0, 1, it.polIndex)
			for ch := 0; ch < it.nChanSel; ch++ {
				copy(sigma[ch*it.nPolSel:], perPol)
			}
		}
		for k := range dst {
			if sigma == nil {
				dst[k] = complex(1, 1)
			} else {
				dst[k] = complex(sigma[k], sigma[k])
			}
		}
	}
	return nil
}

// updateChannelRange sets the channel window of the current chunk from
// the channel or frequency selection. A frequency outside the band flags
// the whole chunk.
func (it *Iterator) updateChannelRange() error {
	nSel, start, flagData := it.nChan, 0, false
	switch {
	case it.sel.FrequenciesSelected():
		ch, err := it.selectedChannel()
		if err != nil {
			return err
		}
		nSel, start = 1, ch
		if ch < 0 || ch >= it.nChan {
			flagData = true
			start = 0
			if ch >= it.nChan {
				start = it.nChan - 1
			}
		}
	case it.sel.ChannelsSelected():
		nSel, start = it.sel.ChannelSelection()
	}
	if nSel != it.nChanSel || start != it.startChan {
		it.acc.spectral.Invalidate()
	}
	it.nChanSel, it.startChan, it.flagData = nSel, start, flagData
	return nil
}

// selectedChannel returns the (possibly out of band) channel nearest the
// selected frequency.
func (it *Iterator) selectedChannel() (int, error) {
	_, f, _ := it.sel.FrequencySelection()
	frame, err := it.info.SpWindows.ReferenceFrame(it.spw)
	if err != nil {
		return 0, err
	}
	freqs, scale, err := it.storedFrequencies()
	if err != nil {
		return 0, err
	}

	// the selection is in the converter's frame, or in the data frame
	// when the converter keeps stored frames
	selFrame, _ := it.conv.FrequencyFrame()
	if selFrame != measures.FrequencyUndefined && selFrame != frame {
		mf, err := it.measFrame()
		if err != nil {
			return 0, err
		}
		if f, err = measures.ConvertFrequency(f, selFrame, frame, mf); err != nil {
			return 0, errs.Selection("cannot convert selected frequency: %v", err)
		}
	}

	n := len(freqs)
	f0 := freqs[0] * scale
	if n == 1 {
		if math.Abs(f-f0) <= 1e-9*math.Abs(f0) {
			return 0, nil
		}
		if f > f0 {
			return 1, nil
		}
		return -1, nil
	}
	inc := (freqs[1] - freqs[0]) * scale
	if inc == 0 || math.Abs((freqs[n-1]*scale-f0)/(float64(n-1)*inc)-1) >= 1e-3 {
		return 0, errs.Selection("frequency selection needs a linear frequency axis in spectral window %d", it.spw)
	}
	return int(math.RoundToEven((f - f0) / inc)), nil
}
