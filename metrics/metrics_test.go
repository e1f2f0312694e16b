package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion(t *testing.T) {
	m := New()
	m.Region("circle", OutcomeKept, 2, 1.5, 1.6)
	m.Region("circle", OutcomeKept, 3, 0.5, 0.4)
	m.Region("polygon", OutcomeEmpty, 1, 0, 0)
	m.Region("type 7", OutcomeSkipped, 0, 0, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.RegionsTotal.WithLabelValues("circle", OutcomeKept)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegionsTotal.WithLabelValues("polygon", OutcomeEmpty)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegionsTotal.WithLabelValues("type 7", OutcomeSkipped)), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.PixelizedArea), 1e-12)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.RawArea), 1e-12)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PixelizeDurationMs))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.SetMap(12, 3.5, 7)
	m.StatusWritesTotal.Inc()

	path := filepath.Join(t.TempDir(), "skypix.prom")
	require.NoError(t, m.WriteFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "skypix_map_cells 12")
	assert.Contains(t, string(b), "skypix_map_area_sq_degrees 3.5")
	assert.Contains(t, string(b), "skypix_status_writes_total 1")

	assert.Error(t, m.WriteFile(filepath.Join(t.TempDir(), "missing", "skypix.prom")))
}
