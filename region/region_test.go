package region

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/pdok/skypix/bound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) ([]Record, error) {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var records []Record
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

func TestReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		lines   []int
		wantErr string
	}{
		{
			name:  "trailing newline",
			input: "0 0 1.0 1.0 180 0 -99 -99 -99 -99 -99 -99\n1 3 -99 2 10 -1 12 1 -99 -99 -99 -99\n",
			want:  []int64{0, 1},
			lines: []int{1, 2},
		},
		{
			name:  "no trailing newline",
			input: "0 0 1.0 1.0 180 0 -99 -99 -99 -99 -99 -99\n1 3 -99 2 10 -1 12 1 -99 -99 -99 -99",
			want:  []int64{0, 1},
			lines: []int{1, 2},
		},
		{
			name:  "comments and blank lines",
			input: "# index type ...\n\n   \n7 0 1 1 1 1 -99 -99 -99 -99 -99 -99\n\n",
			want:  []int64{7},
			lines: []int{4},
		},
		{
			name:  "tabs and extra spaces",
			input: "3\t4  0.5 1\t0 0 1 0 1 1 0 1\n",
			want:  []int64{3},
			lines: []int{1},
		},
		{
			name:  "empty",
			input: "",
		},
		{
			name:    "truncated last line",
			input:   "0 0 1.0 1.0 180 0 -99 -99 -99 -99 -99 -99\n1 3 -99 2 10",
			want:    []int64{0},
			wantErr: "line 2: expected 12 fields, got 5",
		},
		{
			name:    "too many fields",
			input:   "0 0 1.0 1.0 180 0 -99 -99 -99 -99 -99 -99 5\n",
			wantErr: "line 1: expected 12 fields, got 13",
		},
		{
			name:    "bad number",
			input:   "0 0 one 1.0 180 0 -99 -99 -99 -99 -99 -99\n",
			wantErr: "line 1: field 3",
		},
		{
			name:    "bad index",
			input:   "0.5 0 1 1.0 180 0 -99 -99 -99 -99 -99 -99\n",
			wantErr: "line 1: index",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := readAll(t, tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			var indexes []int64
			var lines []int
			for _, r := range records {
				indexes = append(indexes, r.Index)
				lines = append(lines, r.Line)
			}
			assert.Equal(t, tt.want, indexes)
			if tt.lines != nil {
				assert.Equal(t, tt.lines, lines)
			}
		})
	}
}

func TestReader_EOFIsSticky(t *testing.T) {
	r := NewReader(strings.NewReader("0 0 1 1 0 0 0 0 0 0 0 0"))
	_, err := r.Read()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = r.Read()
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, 1, r.Line())
}

func TestParseRecord(t *testing.T) {
	record, err := ParseRecord("12 4 -99 2.5 10 20 11 20 11 21 10 21")
	require.NoError(t, err)
	assert.Equal(t, Record{
		Index:  12,
		Type:   TypePolygon,
		Param:  -99,
		Weight: 2.5,
		RA:     [4]float64{10, 11, 11, 10},
		Dec:    [4]float64{20, 20, 21, 21},
	}, record)
}

func TestRecord_Bound(t *testing.T) {
	circle, err := ParseRecord("0 0 1.0 1.0 180 0 -99 -99 -99 -99 -99 -99")
	require.NoError(t, err)
	b, err := circle.Bound()
	require.NoError(t, err)
	assert.Equal(t, bound.KindCircle, b.Kind())
	assert.InEpsilon(t, math.Pi, b.Area(), 1e-4)

	rect, err := ParseRecord("1 3 -99 1 10 -1 12 1 -99 -99 -99 -99")
	require.NoError(t, err)
	b, err = rect.Bound()
	require.NoError(t, err)
	require.Equal(t, bound.KindLatLon, b.Kind())
	latlon := b.(*bound.LatLon)
	assert.InDelta(t, -1.0, latlon.DecMin(), 1e-12)
	assert.InDelta(t, 1.0, latlon.DecMax(), 1e-12)
	assert.InDelta(t, 10.0, latlon.RaMin(), 1e-9)
	assert.InDelta(t, 12.0, latlon.RaMax(), 1e-9)

	polygon, err := ParseRecord("2 4 -99 1 10 20 11 20 11 21 10 21")
	require.NoError(t, err)
	b, err = polygon.Bound()
	require.NoError(t, err)
	assert.Equal(t, bound.KindPolygon, b.Kind())
	assert.Equal(t, 4, b.Size())

	unknown, err := ParseRecord("3 2 1 1 10 20 11 20 11 21 10 21")
	require.NoError(t, err)
	assert.False(t, unknown.Type.Known())
	_, err = unknown.Bound()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRecord_WeightOr(t *testing.T) {
	assert.Equal(t, 2.0, Record{Weight: 2}.WeightOr(1))
	assert.Equal(t, 0.0, Record{Weight: 0}.WeightOr(1))
	assert.Equal(t, 1.5, Record{Weight: -99}.WeightOr(1.5))
}

func TestRange(t *testing.T) {
	tests := []struct {
		rng   Range
		index int64
		want  bool
	}{
		{rng: Range{Start: 0, Finish: -1}, index: 0, want: true},
		{rng: Range{Start: 0, Finish: -1}, index: math.MaxInt64, want: true},
		{rng: Range{Start: 5, Finish: 10}, index: 4, want: false},
		{rng: Range{Start: 5, Finish: 10}, index: 5, want: true},
		{rng: Range{Start: 5, Finish: 10}, index: 9, want: true},
		{rng: Range{Start: 5, Finish: 10}, index: 10, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rng.Contains(tt.index), "%+v %d", tt.rng, tt.index)
	}
	assert.Equal(t, int64(-1), Range{Finish: -1}.Total())
	assert.Equal(t, int64(5), Range{Start: 5, Finish: 10}.Total())
	assert.Equal(t, int64(0), Range{Start: 10, Finish: 5}.Total())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "circle", TypeCircle.String())
	assert.Equal(t, "rect", TypeRect.String())
	assert.Equal(t, "polygon", TypePolygon.String())
	assert.Equal(t, "type 7", Type(7).String())
}
