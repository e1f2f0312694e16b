// Package region reads region files: one region per line, twelve
// whitespace separated fields
//
//	index type param weight ra0 dec0 ra1 dec1 ra2 dec2 ra3 dec3
//
// where type 0 is a circle around (ra0, dec0) with radius param (degrees),
// type 3 a rectangle from dec0 to dec1 and ra0 to ra1, and type 4 a polygon
// through the four (ra, dec) vertices. Unused fields hold a sentinel like -99.
package region

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdok/skypix/bound"
	"github.com/pdok/skypix/sphere"
	"github.com/pkg/errors"
)

const NumFields = 12

type Type int

const (
	TypeCircle  Type = 0
	TypeRect    Type = 3
	TypePolygon Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeCircle:
		return "circle"
	case TypeRect:
		return "rect"
	case TypePolygon:
		return "polygon"
	}
	return "type " + strconv.Itoa(int(t))
}

func (t Type) Known() bool {
	return t == TypeCircle || t == TypeRect || t == TypePolygon
}

// ErrUnknownType is returned by Record.Bound for types other than circle, rect and polygon.
var ErrUnknownType = errors.New("unknown region type")

type Record struct {
	Index  int64
	Type   Type
	Param  float64
	Weight float64
	RA     [4]float64
	Dec    [4]float64
	// Line is the line number in the file, counting from 1.
	Line int
}

// WeightOr returns the record's weight, or def when the weight is negative
// (the -99 sentinel).
func (r Record) WeightOr(def float64) float64 {
	if r.Weight < 0 {
		return def
	}
	return r.Weight
}

// Bound creates the region described by the record.
func (r Record) Bound() (bound.Bound, error) {
	switch r.Type {
	case TypeCircle:
		return bound.CircleFromRadius(sphere.FromEquatorial(r.RA[0], r.Dec[0]), r.Param), nil
	case TypeRect:
		return bound.NewLatLon(r.Dec[0], r.Dec[1], r.RA[0], r.RA[1]), nil
	case TypePolygon:
		vertices := make([][2]float64, len(r.RA))
		for i := range r.RA {
			vertices[i] = [2]float64{r.RA[i], r.Dec[i]}
		}
		return bound.PolygonFromEquatorial(vertices), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "record %d has type %d", r.Index, int(r.Type))
}

// Range selects records by index: Start <= index < Finish. A negative
// Finish means no upper limit.
type Range struct {
	Start  int64
	Finish int64
}

func (rg Range) Contains(index int64) bool {
	return rg.Start <= index && (rg.Finish < 0 || index < rg.Finish)
}

// Total is the number of indexes in the range, -1 when unbounded.
func (rg Range) Total() int64 {
	if rg.Finish < 0 {
		return -1
	}
	return max(rg.Finish-rg.Start, 0)
}

// Reader reads records line by line. Blank lines and lines starting with #
// are skipped. A last line without a trailing newline is read like any other.
// Any other line that isn't a complete record is an error; nothing is
// silently dropped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		record, err := ParseRecord(text)
		if err != nil {
			return Record{}, errors.Wrapf(err, "line %d", r.line)
		}
		record.Line = r.line
		return record, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, errors.Wrapf(err, "after line %d", r.line)
	}
	return Record{}, io.EOF
}

// Line is the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

func ParseRecord(line string) (Record, error) {
	var record Record
	fields := strings.Fields(line)
	if len(fields) != NumFields {
		return record, fmt.Errorf("expected %d fields, got %d", NumFields, len(fields))
	}
	index, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return record, errors.Wrap(err, "index")
	}
	typ, err := strconv.Atoi(fields[1])
	if err != nil {
		return record, errors.Wrap(err, "type")
	}
	values := make([]float64, NumFields-2)
	for i, f := range fields[2:] {
		if values[i], err = strconv.ParseFloat(f, 64); err != nil {
			return record, errors.Wrapf(err, "field %d", i+3)
		}
	}
	record.Index = index
	record.Type = Type(typ)
	record.Param = values[0]
	record.Weight = values[1]
	for i := 0; i < 4; i++ {
		record.RA[i] = values[2+2*i]
		record.Dec[i] = values[3+2*i]
	}
	return record, nil
}
