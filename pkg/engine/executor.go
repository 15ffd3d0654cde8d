package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/parser"
)

// ChunkSummary describes one chunk of an iteration.
type ChunkSummary struct {
	Chunk          int        `json:"chunk"`
	TopRow         int        `json:"top_row"`
	Rows           int        `json:"rows"`
	Time           float64    `json:"time"`
	DataDescID     int        `json:"data_desc_id"`
	SpWindowID     int        `json:"spw_id"`
	FieldID        int        `json:"field_id"`
	Channels       int        `json:"channels"`
	StartChannel   int        `json:"start_channel"`
	FrequencyRange [2]float64 `json:"frequency_range"`
	Stokes         []string   `json:"stokes"`
	FlaggedFrac    float64    `json:"flagged_fraction"`
}

// Executor drives an iterator to the end and reports on it as JSONL.
type Executor struct {
	Pretty bool
	// Limit stops the iteration after this many chunks when positive.
	Limit int

	log *slog.Logger
}

func NewExecutor() *Executor {
	return &Executor{
		Pretty: false,
		log:    logging.Component("engine"),
	}
}

// Summarize describes the chunk the iterator is positioned at.
func Summarize(it *access.Iterator, chunk int) (ChunkSummary, error) {
	return summarize(it.ChunkInfo(), it.Accessor(), chunk)
}

func summarize(info access.ChunkInfo, acc access.ConstAccessor, chunk int) (ChunkSummary, error) {
	s := ChunkSummary{
		Chunk:        chunk,
		TopRow:       info.TopRow,
		Rows:         acc.NRow(),
		Time:         acc.Time(),
		DataDescID:   info.DataDescID,
		SpWindowID:   info.SpWindowID,
		FieldID:      info.FieldID,
		Channels:     info.Channels,
		StartChannel: info.StartChannel,
	}

	freq, err := acc.Frequency()
	if err != nil {
		return s, err
	}
	if len(freq) > 0 {
		s.FrequencyRange = [2]float64{freq[0], freq[len(freq)-1]}
	}
	stokes, err := acc.Stokes()
	if err != nil {
		return s, err
	}
	for _, p := range stokes {
		s.Stokes = append(s.Stokes, p.String())
	}

	flag, err := acc.Flag()
	if err != nil {
		return s, err
	}
	var flagged, total int
	for row := 0; row < acc.NRow(); row++ {
		for _, f := range flag.RowSlice(row) {
			total++
			if f {
				flagged++
			}
		}
	}
	if total > 0 {
		s.FlaggedFrac = float64(flagged) / float64(total)
	}
	return s, nil
}

// Execute restarts it and writes one chunk document per chunk to w. It
// returns the number of chunks written.
func (e *Executor) Execute(ctx context.Context, it *access.Iterator, w io.Writer) (int, error) {
	if err := it.Restart(); err != nil {
		return 0, err
	}
	out := parser.NewWriter(w, e.Pretty)
	n := 0
	for it.HasMore() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if e.Limit > 0 && n >= e.Limit {
			break
		}
		s, err := Summarize(it, n)
		if err != nil {
			return n, err
		}
		if err := out.Write(parser.KindChunk, s); err != nil {
			return n, err
		}
		n++
		if _, err := it.Next(); err != nil {
			return n, err
		}
	}
	e.log.Debug("iteration summarized", "chunks", n)
	return n, nil
}

// ExecuteStacked writes one chunk document per chunk of a stacked
// iteration, numbering the chunks in the order of the stack.
func (e *Executor) ExecuteStacked(ctx context.Context, it *access.StackedIterator, w io.Writer) (int, error) {
	it.Restart()
	out := parser.NewWriter(w, e.Pretty)
	n := 0
	for ; it.HasMore(); it.Next() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if e.Limit > 0 && n >= e.Limit {
			break
		}
		s, err := summarize(it.Info(), it.Accessor(), n)
		if err != nil {
			return n, err
		}
		if err := out.Write(parser.KindChunk, s); err != nil {
			return n, err
		}
		n++
	}
	e.log.Debug("stack summarized", "chunks", n)
	return n, nil
}

// Aggregate restarts it and feeds every chunk to agg.
func (e *Executor) Aggregate(ctx context.Context, it *access.Iterator, agg *Aggregator) error {
	if err := it.Restart(); err != nil {
		return err
	}
	n := 0
	for it.HasMore() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := agg.Add(it.Accessor()); err != nil {
			return err
		}
		n++
		if _, err := it.Next(); err != nil {
			return err
		}
	}
	e.log.Debug("iteration aggregated", "chunks", n, "baselines", agg.Len())
	return nil
}

// WriteBaselines writes one baseline document per entry of stats.
func (e *Executor) WriteBaselines(w io.Writer, stats []BaselineStats) error {
	out := parser.NewWriter(w, e.Pretty)
	for _, s := range stats {
		if err := out.Write(parser.KindBaseline, s); err != nil {
			return err
		}
	}
	return nil
}
