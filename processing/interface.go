package processing

import (
	"bufio"
	"os"

	"github.com/pdok/skypix/coverage"
	"github.com/pdok/skypix/region"
	"github.com/pkg/errors"
)

// Source yields region records until io.EOF. *region.Reader is one.
type Source interface {
	Read() (region.Record, error)
}

// Target receives the finished coverage map.
type Target interface {
	WriteMap(*coverage.Map) error
}

// MapFile is a Target writing the map's text format, compressed by extension.
type MapFile string

func (f MapFile) WriteMap(m *coverage.Map) error {
	return m.WriteFile(string(f))
}

// WktFile is a Target writing one polygon per cell, for debugging.
type WktFile string

func (f WktFile) WriteMap(m *coverage.Map) (err error) {
	file, err := os.Create(string(f))
	if err != nil {
		return errors.Wrapf(err, "creating %s", f)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %s", f)
		}
	}()
	w := bufio.NewWriter(file)
	if err = m.WriteWkt(w); err != nil {
		return errors.Wrapf(err, "writing %s", f)
	}
	return w.Flush()
}

// WriteTargets hands m to every target in turn, stopping at the first error.
func WriteTargets(m *coverage.Map, targets ...Target) error {
	for _, t := range targets {
		if err := t.WriteMap(m); err != nil {
			return err
		}
	}
	return nil
}
