package engine

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
)

// BaselineStats summarises the samples of one antenna pair.
type BaselineStats struct {
	Antenna1        int      `json:"antenna1"`
	Antenna2        int      `json:"antenna2"`
	Rows            int      `json:"rows"`
	Samples         int      `json:"samples"`
	Flagged         int      `json:"flagged"`
	FlaggedFraction float64  `json:"flagged_fraction"`
	Stokes          []string `json:"stokes"`
	// MeanAmplitude is per polarisation product over unflagged samples,
	// 0 when all of them are flagged.
	MeanAmplitude []float64 `json:"mean_amplitude"`
}

type baselineState struct {
	stats BaselineStats
	sum   []float64
	count []int
}

// Aggregator accumulates per-baseline statistics chunk by chunk.
type Aggregator struct {
	// SubtractModel computes amplitudes of data minus MODEL_DATA through a
	// memory buffer accessor. The iteration must carry MODEL_DATA as an
	// extra column.
	SubtractModel bool

	baselines map[[2]int]*baselineState
	residual  *access.MemBufferAccessor
}

func NewAggregator(subtractModel bool) *Aggregator {
	return &Aggregator{
		SubtractModel: subtractModel,
		baselines:     make(map[[2]int]*baselineState),
	}
}

// Len returns the number of baselines seen so far.
func (a *Aggregator) Len() int {
	return len(a.baselines)
}

// residualOf returns an accessor serving data minus MODEL_DATA for the
// current chunk of acc.
func (a *Aggregator) residualOf(acc *access.Accessor) (access.ConstAccessor, error) {
	model, err := acc.Column(database.ColModelData)
	if err != nil {
		return nil, fmt.Errorf("cannot subtract model: %w", err)
	}
	data, err := acc.Visibility()
	if err != nil {
		return nil, err
	}
	if a.residual == nil || a.residual.ConstAccessor != access.ConstAccessor(acc) {
		a.residual = access.NewMemBufferAccessor(acc)
	}
	out, err := a.residual.RWVisibility()
	if err != nil {
		return nil, err
	}
	for i := range out.Data {
		out.Data[i] = data.Data[i] - model.Data[i]
	}
	return a.residual, nil
}

// Add accumulates the rows of the current chunk of acc.
func (a *Aggregator) Add(acc *access.Accessor) error {
	var src access.ConstAccessor = acc
	if a.SubtractModel {
		res, err := a.residualOf(acc)
		if err != nil {
			return err
		}
		src = res
	}
	vis, err := src.Visibility()
	if err != nil {
		return err
	}
	flag, err := src.Flag()
	if err != nil {
		return err
	}
	stokes, err := src.Stokes()
	if err != nil {
		return err
	}
	ant1, ant2 := src.Antenna1(), src.Antenna2()

	nRow, nChan, nPol := vis.Shape()
	for row := 0; row < nRow; row++ {
		key := [2]int{ant1[row], ant2[row]}
		b, ok := a.baselines[key]
		if !ok {
			b = &baselineState{
				stats: BaselineStats{Antenna1: key[0], Antenna2: key[1]},
				sum:   make([]float64, nPol),
				count: make([]int, nPol),
			}
			for _, s := range stokes {
				b.stats.Stokes = append(b.stats.Stokes, s.String())
			}
			a.baselines[key] = b
		}
		if len(b.sum) != nPol {
			return errs.ShapeMismatch("baseline %d-%d has %d polarisations, chunk has %d",
				key[0], key[1], len(b.sum), nPol).WithRow(row)
		}
		b.stats.Rows++
		for ch := 0; ch < nChan; ch++ {
			for pol := 0; pol < nPol; pol++ {
				b.stats.Samples++
				if flag.At(row, ch, pol) {
					b.stats.Flagged++
					continue
				}
				b.sum[pol] += cmplx.Abs(complex128(vis.At(row, ch, pol)))
				b.count[pol]++
			}
		}
	}
	return nil
}

// Results returns the statistics ordered by antenna pair.
func (a *Aggregator) Results() []BaselineStats {
	keys := make([][2]int, 0, len(a.baselines))
	for k := range a.baselines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := make([]BaselineStats, 0, len(keys))
	for _, k := range keys {
		b := a.baselines[k]
		s := b.stats
		if s.Samples > 0 {
			s.FlaggedFraction = float64(s.Flagged) / float64(s.Samples)
		}
		s.MeanAmplitude = make([]float64, len(b.sum))
		for p := range b.sum {
			if b.count[p] > 0 {
				s.MeanAmplitude[p] = b.sum[p] / float64(b.count[p])
			}
		}
		out = append(out, s)
	}
	return out
}
