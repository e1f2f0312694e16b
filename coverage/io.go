package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pdok/skypix/pixel"
	"github.com/pkg/errors"
)

// Write writes the map as text, one cell per line in pixel order:
//
//	# comment
//	<token> <level> <weight>
func (m *Map) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# cells: %d area: %g weighted area: %g\n", m.Size(), m.Area(), m.WeightedArea()); err != nil {
		return err
	}
	for _, e := range m.entries {
		line := e.Cell.Token() + " " + strconv.Itoa(e.Cell.Level()) + " " + strconv.FormatFloat(e.Weight, 'g', -1, 64) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses the format written by Write. Blank lines and lines starting
// with # are ignored.
func Read(r io.Reader) (*Map, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "after line %d", lineNo)
	}
	return FromEntries(entries)
}

func parseEntry(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Entry{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	c := pixel.FromToken(fields[0])
	if !c.IsValid() {
		return Entry{}, fmt.Errorf("invalid cell token %q", fields[0])
	}
	level, err := strconv.Atoi(fields[1])
	if err != nil {
		return Entry{}, err
	}
	if level != c.Level() {
		return Entry{}, fmt.Errorf("cell %s is not at level %d", fields[0], level)
	}
	weight, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Cell: c, Weight: weight}, nil
}

// WriteFile writes the map to path, gzip or zstd compressed when path ends
// in .gz or .zst.
func (m *Map) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create map file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "could not close map file")
		}
	}()

	var w io.WriteCloser
	switch {
	case strings.HasSuffix(path, ".gz"):
		w = gzip.NewWriter(f)
	case strings.HasSuffix(path, ".zst"):
		if w, err = zstd.NewWriter(f); err != nil {
			return errors.Wrap(err, "could not create zstd writer")
		}
	default:
		return errors.Wrapf(m.Write(f), "could not write map to %s", path)
	}
	if err = m.Write(w); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "could not write map to %s", path)
	}
	return errors.Wrapf(w.Close(), "could not write map to %s", path)
}

// ReadFile reads a map written by WriteFile.
func ReadFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open map file")
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", path)
		}
		defer gr.Close()
		r = gr
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", path)
		}
		defer zr.Close()
		r = zr
	}
	m, err := Read(r)
	return m, errors.Wrapf(err, "could not read %s", path)
}

// WriteWkt writes each cell as a (lng, lat) POLYGON on its own line. For
// debugging and visualising.
func (m *Map) WriteWkt(w io.Writer) error {
	for _, e := range m.entries {
		if err := wkt.Encode(w, e.Cell.Polygon()); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
