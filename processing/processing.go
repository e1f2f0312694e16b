// Package processing takes care of the logistics of turning a stream of
// regions into one coverage map: reading, pixelizing in parallel and merging
// in input order. The geometry itself lives in bound and coverage.
package processing

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-spatial/geom"
	"github.com/pdok/skypix/bound"
	"github.com/pdok/skypix/coverage"
	"github.com/pdok/skypix/geomhelp"
	"github.com/pdok/skypix/mapslicehelp"
	"github.com/pdok/skypix/metrics"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/region"
	"github.com/pdok/skypix/sphere"
	"github.com/pkg/errors"
	"github.com/umpc/go-sortedmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStatusInterval = 1000
	// wkt of a region map in debug logs is cut off after this many characters
	maxWktLogLength = 256
)

type MergeMode int

const (
	// Ingest keeps the weight already in the map wherever regions overlap.
	Ingest MergeMode = iota
	// Add sums the weights of overlapping regions.
	Add
)

func (m MergeMode) String() string {
	switch m {
	case Ingest:
		return "ingest"
	case Add:
		return "add"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

type Options struct {
	MaxLevel      pixel.Level
	DefaultWeight float64
	Range         region.Range
	Mode          MergeMode
	// Workers defaults to the number of CPUs.
	Workers int
	// StatusFile is rewritten every StatusInterval kept regions and when a
	// run is aborted. Empty disables it.
	StatusFile     string
	StatusInterval int
}

// Processor merges the regions of one or more sources into an accumulator
// map. Its Status carries over between runs.
type Processor struct {
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	status  Status
}

func New(opts Options, log *zap.Logger, m *metrics.Metrics) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Processor{
		opts:    opts,
		log:     log,
		metrics: m,
		status:  newStatus(opts.Range),
	}
}

func (p *Processor) Status() Status {
	return p.status.clone()
}

func (p *Processor) Metrics() *metrics.Metrics {
	return p.metrics
}

type job struct {
	seq    int64
	record region.Record
}

type result struct {
	job
	m        *coverage.Map
	raw      float64
	skipped  bool
	duration time.Duration
}

// Run pixelizes every record of source within the index range and merges the
// results into acc in the order they were read. When ctx is cancelled or the
// source fails, acc holds the merge of a prefix of the records, the status
// file describes that prefix and the error is returned.
func (p *Processor) Run(ctx context.Context, source Source, acc *coverage.Map) error {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)
	results := make(chan result)

	g.Go(func() error {
		defer close(jobs)
		return p.readRecords(gctx, source, jobs)
	})

	var workers sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				select {
				case results <- p.pixelize(j):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	pending := p.reduce(gctx, results, acc)
	// let the workers finish when the reducer stopped early
	for range results {
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		p.log.Warn("run aborted",
			zap.Error(err),
			zap.Int64("lastIndex", p.status.LastIndex),
			zap.Int("pending", pending))
		if serr := p.writeStatus(); serr != nil {
			p.log.Error("could not write status", zap.Error(serr))
		}
		return err
	}
	p.metrics.SetMap(acc.Size(), acc.Area(), acc.WeightedArea())
	return nil
}

func (p *Processor) readRecords(ctx context.Context, source Source, jobs chan<- job) error {
	var seq int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := source.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !p.opts.Range.Contains(record.Index) {
			continue
		}
		select {
		case jobs <- job{seq: seq, record: record}:
			seq++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Processor) pixelize(j job) result {
	start := time.Now()
	r := result{job: j}
	b, err := j.record.Bound()
	if err != nil {
		r.skipped = true
		return r
	}
	r.raw = b.Area()
	r.m = coverage.FromBound(b, j.record.WeightOr(p.opts.DefaultWeight), p.opts.MaxLevel)
	r.duration = time.Since(start)
	if ce := p.log.Check(zap.DebugLevel, "pixelized region"); ce != nil {
		ce.Write(regionFields(j.record, b, r)...)
	}
	return r
}

func regionFields(record region.Record, b bound.Bound, r result) []zap.Field {
	ra, dec := sphere.ToEquatorial(b.Center())
	fields := []zap.Field{
		zap.Int64("index", record.Index),
		zap.Int("line", record.Line),
		zap.Stringer("type", record.Type),
		zap.Float64("param", record.Param),
		zap.Float64("centerRa", ra),
		zap.Float64("centerDec", dec),
		zap.Float64("radius", b.CircleBound().Radius()),
		zap.Float64("area", r.raw),
		zap.Float64("pixelizedArea", r.m.Area()),
		zap.Int("cells", r.m.Size()),
		zap.Duration("took", r.duration),
	}
	if !r.m.IsEmpty() {
		polygons := make(geom.MultiPolygon, 0, r.m.Size())
		for _, c := range r.m.Cells() {
			polygons = append(polygons, c.Polygon())
		}
		fields = append(fields, zap.String("wkt", geomhelp.WktMustEncode(polygons, maxWktLogLength)))
	}
	return fields
}

// reduce merges results in sequence order until results is closed or ctx is
// done. Results that arrive early wait in a buffer ordered by sequence
// number. It returns the number of results still buffered.
func (p *Processor) reduce(ctx context.Context, results <-chan result, acc *coverage.Map) int {
	buffer := sortedmap.New(p.opts.Workers*2, func(x, y interface{}) bool {
		return x.(result).seq < y.(result).seq
	})
	var next int64
	for r := range results {
		buffer.Insert(r.seq, r)
		for {
			if ctx.Err() != nil {
				return buffer.Len()
			}
			v, ok := buffer.Get(next)
			if !ok {
				break
			}
			buffer.Delete(next)
			next++
			p.merge(v.(result), acc)
		}
	}
	return buffer.Len()
}

func (p *Processor) merge(r result, acc *coverage.Map) {
	s := &p.status
	s.Seen++
	s.LastIndex = r.record.Index
	typ := r.record.Type.String()
	mapslicehelp.Increment(s.ByType, typ, 1)

	switch {
	case r.skipped:
		s.Skipped++
		p.metrics.Region(typ, metrics.OutcomeSkipped, 0, 0, 0)
		p.log.Debug("skipped region of unknown type",
			zap.Int64("index", r.record.Index),
			zap.Int("line", r.record.Line),
			zap.Stringer("type", r.record.Type))
		return
	case r.m.IsEmpty():
		s.Empty++
		p.metrics.Region(typ, metrics.OutcomeEmpty, 0, 0, 0)
		p.log.Debug("region has no pixels",
			zap.Int64("index", r.record.Index),
			zap.Int("line", r.record.Line))
		return
	}

	switch p.opts.Mode {
	case Add:
		acc.Add(r.m)
	default:
		acc.Ingest(r.m)
	}
	s.Kept++
	s.PixelizedArea += r.m.Area()
	s.RawArea += r.raw
	p.metrics.Region(typ, metrics.OutcomeKept, float64(r.duration.Microseconds())/1000, r.m.Area(), r.raw)

	if s.Kept%int64(p.opts.StatusInterval) == 0 {
		p.log.Info("progress",
			zap.Int64("lastIndex", s.LastIndex),
			zap.String("kept", humanize.Comma(s.Kept)),
			zap.String("mapCells", humanize.Comma(int64(acc.Size()))),
			zap.Float64("mapArea", acc.Area()))
		if err := p.writeStatus(); err != nil {
			p.log.Error("could not write status", zap.Error(err))
		}
	}
}

func (p *Processor) writeStatus() error {
	if p.opts.StatusFile == "" {
		return nil
	}
	p.metrics.StatusWritesTotal.Inc()
	return p.status.WriteFile(p.opts.StatusFile)
}

// Status describes the regions merged so far.
type Status struct {
	LastIndex int64
	// Seen counts every record within the index range, Kept those that
	// added pixels to the map.
	Seen    int64
	Kept    int64
	Empty   int64
	Skipped int64
	// Total is the size of the index range, -1 when unbounded.
	Total         int64
	PixelizedArea float64
	RawArea       float64
	ByType        *orderedmap.OrderedMap[string, int64]
}

func newStatus(rg region.Range) Status {
	return Status{
		LastIndex: -1,
		Total:     rg.Total(),
		ByType:    orderedmap.New[string, int64](),
	}
}

func (s Status) clone() Status {
	byType := orderedmap.New[string, int64]()
	for pair := s.ByType.Oldest(); pair != nil; pair = pair.Next() {
		byType.Set(pair.Key, pair.Value)
	}
	s.ByType = byType
	return s
}

// String formats the status as a single line
//
//	lastIndex: kept/seen/total regions pixelized; pixelized sq. degrees (raw)
func (s Status) String() string {
	return fmt.Sprintf("%d: %d/%d/%d regions pixelized; %g sq. degrees (%g)",
		s.LastIndex, s.Kept, s.Seen, s.Total, s.PixelizedArea, s.RawArea)
}

func (s Status) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(s.String()+"\n"), 0o644); err != nil { //nolint:gosec
		return errors.Wrapf(err, "writing status to %s", path)
	}
	return nil
}
