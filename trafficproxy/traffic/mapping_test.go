package traffic_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/trafficproxy/traffic"
)

func writeMapping(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service_to_osm_mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMapping_SkipsUnusableRows(t *testing.T) {
	path := writeMapping(t, `service_link_id,osm_way_id
1220003100,518423018
1220003200,
1220003300,NaN
1220003400,nan
1220003500,notanumber
1220003600,519112877.0
`)

	mapping, stats, err := traffic.LoadMapping(path, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 2, mapping.Len())

	way, ok := mapping.WayID("1220003100")
	require.True(t, ok)
	assert.Equal(t, "518423018", way)

	// Float-serialized way ids are normalized to integers.
	way, ok = mapping.WayID("1220003600")
	require.True(t, ok)
	assert.Equal(t, "519112877", way)

	_, ok = mapping.WayID("1220003300")
	assert.False(t, ok)
}

func TestLoadMapping_HeaderColumnOrderIsFlexible(t *testing.T) {
	path := writeMapping(t, `osm_way_id,service_link_id,extra
518423018,1220003100,x
`)

	mapping, stats, err := traffic.LoadMapping(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)

	way, ok := mapping.WayID("1220003100")
	require.True(t, ok)
	assert.Equal(t, "518423018", way)
}

func TestLoadMapping_MissingHeaderFails(t *testing.T) {
	path := writeMapping(t, `link,way
1,2
`)
	_, _, err := traffic.LoadMapping(path, slog.Default())
	assert.Error(t, err)
}
