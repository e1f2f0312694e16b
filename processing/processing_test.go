package processing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdok/skypix/coverage"
	"github.com/pdok/skypix/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLevel = 9

type sliceSource struct {
	records []region.Record
	i       int
	err     error
}

func (s *sliceSource) Read() (region.Record, error) {
	if s.i >= len(s.records) {
		if s.err != nil {
			return region.Record{}, s.err
		}
		return region.Record{}, io.EOF
	}
	s.i++
	return s.records[s.i-1], nil
}

// cancellingSource never ends, it cancels the run after n records.
type cancellingSource struct {
	n      int
	read   int
	cancel context.CancelFunc
}

func (s *cancellingSource) Read() (region.Record, error) {
	s.read++
	if s.read == s.n {
		s.cancel()
	}
	return circle(int64(s.read), float64(s.read%360), 10, 1), nil
}

func circle(index int64, ra, dec, weight float64) region.Record {
	return region.Record{
		Index:  index,
		Type:   region.TypeCircle,
		Param:  0.8,
		Weight: weight,
		RA:     [4]float64{ra, -99, -99, -99},
		Dec:    [4]float64{dec, -99, -99, -99},
	}
}

func overlappingRecords() []region.Record {
	records := make([]region.Record, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, circle(int64(100+i), 20+0.5*float64(i), -5+0.3*float64(i), float64(1+i%3)))
	}
	records[4].Weight = -99
	rect := region.Record{Index: 200, Type: region.TypeRect, Weight: 2,
		RA: [4]float64{19, 22, -99, -99}, Dec: [4]float64{-6, -4, -99, -99}}
	polygon := region.Record{Index: 201, Type: region.TypePolygon, Weight: 3,
		RA: [4]float64{21, 23, 23, 21}, Dec: [4]float64{-3, -3, -1, -1}}
	return append(records, rect, polygon)
}

func sequential(t *testing.T, records []region.Record, mode MergeMode, defaultWeight float64) *coverage.Map {
	t.Helper()
	acc := coverage.New()
	for _, r := range records {
		b, err := r.Bound()
		if err != nil {
			continue
		}
		m := coverage.FromBound(b, r.WeightOr(defaultWeight), testLevel)
		if mode == Add {
			acc.Add(m)
		} else {
			acc.Ingest(m)
		}
	}
	return acc
}

func TestProcessor_RunMatchesSequentialMerge(t *testing.T) {
	for _, mode := range []MergeMode{Ingest, Add} {
		t.Run(mode.String(), func(t *testing.T) {
			records := overlappingRecords()
			p := New(Options{MaxLevel: testLevel, DefaultWeight: 5, Range: region.Range{Finish: -1}, Mode: mode, Workers: 4}, nil, nil)
			acc := coverage.New()
			require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))

			want := sequential(t, records, mode, 5)
			assert.Equal(t, want.Entries(), acc.Entries())

			status := p.Status()
			assert.Equal(t, int64(len(records)), status.Seen)
			assert.Equal(t, int64(len(records)), status.Kept)
			assert.Equal(t, int64(201), status.LastIndex)
			assert.Equal(t, int64(-1), status.Total)
			assert.InEpsilon(t, status.RawArea, status.PixelizedArea, 0.05)
			n, _ := status.ByType.Get("circle")
			assert.Equal(t, int64(12), n)
		})
	}
}

func TestProcessor_SingleRecord(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			records := []region.Record{circle(7, 45, 45, 2)}
			p := New(Options{MaxLevel: testLevel, Range: region.Range{Finish: -1}, Workers: workers}, nil, nil)
			acc := coverage.New()
			require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))
			assert.Equal(t, sequential(t, records, Ingest, 1).Entries(), acc.Entries())
			assert.Equal(t, int64(7), p.Status().LastIndex)
			assert.Equal(t, int64(1), p.Status().Kept)
		})
	}
}

func TestProcessor_SlowFirstRegion(t *testing.T) {
	large := circle(1, 180, 0, 1)
	large.Param = 40
	records := []region.Record{large}
	for i := int64(0); i < 40; i++ {
		records = append(records, circle(2+i, 170+0.5*float64(i), 1, float64(2+i%4)))
	}
	p := New(Options{MaxLevel: testLevel, Range: region.Range{Finish: -1}, Workers: 6}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))

	assert.Equal(t, sequential(t, records, Ingest, 1).Entries(), acc.Entries())
	status := p.Status()
	assert.Equal(t, int64(len(records)), status.Kept)
	assert.Equal(t, int64(41), status.LastIndex)
}

func TestProcessor_ReduceReordersResults(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{name: "in order", order: []int{0, 1, 2, 3, 4, 5}},
		{name: "reversed", order: []int{5, 4, 3, 2, 1, 0}},
		{name: "interleaved", order: []int{1, 0, 3, 5, 2, 4}},
	}
	records := overlappingRecords()[:6]
	want := sequential(t, records, Ingest, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1}, Workers: 2}, nil, nil)
			results := make(chan result, len(records))
			for _, i := range tt.order {
				results <- p.pixelize(job{seq: int64(i), record: records[i]})
			}
			close(results)

			acc := coverage.New()
			assert.Zero(t, p.reduce(context.Background(), results, acc))
			assert.Equal(t, want.Entries(), acc.Entries())
			assert.Equal(t, records[5].Index, p.Status().LastIndex)
			assert.Equal(t, int64(6), p.Status().Kept)
		})
	}

	t.Run("gap", func(t *testing.T) {
		p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1}}, nil, nil)
		results := make(chan result, 3)
		for _, i := range []int{1, 2, 3} {
			results <- p.pixelize(job{seq: int64(i), record: records[i]})
		}
		close(results)

		acc := coverage.New()
		assert.Equal(t, 3, p.reduce(context.Background(), results, acc))
		assert.True(t, acc.IsEmpty())
		assert.Zero(t, p.Status().Seen)
	})
}

func TestProcessor_AddSumsWeights(t *testing.T) {
	records := []region.Record{circle(1, 50, 50, 1), circle(2, 50, 50, 2)}
	p := New(Options{MaxLevel: testLevel, Range: region.Range{Finish: -1}, Mode: Add, Workers: 2}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))
	for _, e := range acc.Entries() {
		assert.InDelta(t, 3.0, e.Weight, 1e-12)
	}
	assert.InDelta(t, 3*acc.Area(), acc.WeightedArea(), 1e-9)
}

func TestProcessor_UnknownTypeIsSkipped(t *testing.T) {
	unknown := circle(3, 40, 40, 1)
	unknown.Type = 7
	records := []region.Record{circle(1, 10, 10, 1), unknown, circle(2, 12, 10, 1)}
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1}}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))

	assert.Equal(t, sequential(t, records, Ingest, 1).Entries(), acc.Entries())
	status := p.Status()
	assert.Equal(t, int64(3), status.Seen)
	assert.Equal(t, int64(2), status.Kept)
	assert.Equal(t, int64(1), status.Skipped)
	n, ok := status.ByType.Get("type 7")
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestProcessor_EmptyRegions(t *testing.T) {
	degenerate := region.Record{Index: 1, Type: region.TypePolygon, Weight: 1,
		RA: [4]float64{10, 11, 12, 13}, Dec: [4]float64{0, 0, 0, 0}}
	p := New(Options{MaxLevel: testLevel, Range: region.Range{Finish: -1}}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: []region.Record{degenerate}}, acc))
	assert.True(t, acc.IsEmpty())
	assert.Equal(t, int64(1), p.Status().Empty)
	assert.Zero(t, p.Status().Kept)
}

func TestProcessor_Range(t *testing.T) {
	records := overlappingRecords()
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Start: 103, Finish: 107}}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, acc))

	assert.Equal(t, sequential(t, records[3:7], Ingest, 1).Entries(), acc.Entries())
	status := p.Status()
	assert.Equal(t, int64(4), status.Seen)
	assert.Equal(t, int64(4), status.Total)
	assert.Equal(t, int64(106), status.LastIndex)
}

func TestProcessor_StatusFile(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "map_status")
	records := overlappingRecords()[:5]
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1},
		StatusFile: statusFile, StatusInterval: 2}, nil, nil)
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records}, coverage.New()))

	b, err := os.ReadFile(statusFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "103: 4/4/-1 regions pixelized; "), string(b))
	assert.True(t, strings.HasSuffix(string(b), ")\n"))
}

func TestProcessor_StatusCarriesOverRuns(t *testing.T) {
	records := overlappingRecords()
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1}}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records[:6]}, acc))
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: records[6:]}, acc))

	assert.Equal(t, sequential(t, records, Ingest, 1).Entries(), acc.Entries())
	assert.Equal(t, int64(len(records)), p.Status().Kept)
}

func TestProcessor_SourceError(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "map_status")
	source := &sliceSource{records: overlappingRecords()[:3], err: fmt.Errorf("line 4: expected 12 fields, got 3")}
	p := New(Options{MaxLevel: testLevel, Range: region.Range{Finish: -1}, StatusFile: statusFile}, nil, nil)
	err := p.Run(context.Background(), source, coverage.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.FileExists(t, statusFile)
}

func TestProcessor_CancelKeepsMergedPrefix(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "map_status")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := &cancellingSource{n: 5, cancel: cancel}
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1},
		Mode: Add, Workers: 3, StatusFile: statusFile}, nil, nil)
	acc := coverage.New()

	err := p.Run(ctx, source, acc)
	require.ErrorIs(t, err, context.Canceled)

	status := p.Status()
	var prefix []region.Record
	for i := int64(1); i <= status.Seen; i++ {
		prefix = append(prefix, circle(i, float64(i%360), 10, 1))
	}
	assert.Equal(t, sequential(t, prefix, Add, 1).Entries(), acc.Entries())

	b, err := os.ReadFile(statusFile)
	require.NoError(t, err)
	assert.Equal(t, status.String()+"\n", string(b))
}

func TestStatus_String(t *testing.T) {
	s := newStatus(region.Range{Start: 10, Finish: 20})
	s.LastIndex = 14
	s.Kept = 4
	s.Seen = 5
	s.PixelizedArea = 1.5
	s.RawArea = 1.25
	assert.Equal(t, "14: 4/5/10 regions pixelized; 1.5 sq. degrees (1.25)", s.String())
}

func TestMergeMode_String(t *testing.T) {
	assert.Equal(t, "ingest", Ingest.String())
	assert.Equal(t, "add", Add.String())
	assert.Equal(t, "mode(9)", MergeMode(9).String())
}

func TestTargets(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{MaxLevel: testLevel, DefaultWeight: 1, Range: region.Range{Finish: -1}}, nil, nil)
	acc := coverage.New()
	require.NoError(t, p.Run(context.Background(), &sliceSource{records: overlappingRecords()[:2]}, acc))

	mapFile := filepath.Join(dir, "map.gz")
	wktFile := filepath.Join(dir, "map.wkt")
	require.NoError(t, WriteTargets(acc, MapFile(mapFile), WktFile(wktFile)))

	read, err := coverage.ReadFile(mapFile)
	require.NoError(t, err)
	assert.Equal(t, acc.Entries(), read.Entries())

	b, err := os.ReadFile(wktFile)
	require.NoError(t, err)
	assert.Equal(t, acc.Size(), strings.Count(string(b), "POLYGON"))

	assert.Error(t, WriteTargets(acc, WktFile(filepath.Join(dir, "missing", "map.wkt"))))
}
