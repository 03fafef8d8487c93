package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/topology"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	rows []query.Row
}

func (f fakeLoader) Load(topology.DateBounds) ([]query.Row, int, error) {
	return f.rows, len(f.rows), nil
}

func TestShard_ScanRespectsLimitAndOrder(t *testing.T) {
	rows := []query.Row{
		{"PM2.5": 10},
		{"PM2.5": 40},
		{"PM2.5": 50},
		{"PM2.5": 20},
		{"PM2.5": 60},
	}
	shard, err := Load(fakeLoader{rows: rows}, topology.DateBounds{Start: 20240101, End: 20240101}, topology.TeamGreen)
	require.NoError(t, err)

	got := shard.Scan("PM2.5", query.GT, 35, 2)
	require.Len(t, got, 2)
	require.Equal(t, 40.0, got[0]["PM2.5"])
	require.Equal(t, 50.0, got[1]["PM2.5"])
}

func TestShard_ScanZeroLimit(t *testing.T) {
	shard := NewShard(topology.TeamGreen)
	require.Empty(t, shard.Scan("x", query.GT, 0, 0))
}

func TestShard_EmptyRouterHasNoRows(t *testing.T) {
	shard := NewShard(topology.TeamPink)
	require.False(t, shard.Owns())
	require.Empty(t, shard.Scan("x", query.GT, 0, 10))
}

func TestCSVLoader_ReadsDateRange(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("20240101.csv", "PM2.5\n10\n40\n")
	write("20240102.csv", "PM2.5\n50\n")

	loader := CSVLoader{Dir: dir}
	rows, filesLoaded, err := loader.Load(topology.DateBounds{Start: 20240101, End: 20240102})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, 2, filesLoaded)
}

func TestCSVLoader_SkipsMissingDays(t *testing.T) {
	dir := t.TempDir()
	loader := CSVLoader{Dir: dir}
	rows, filesLoaded, err := loader.Load(topology.DateBounds{Start: 20240101, End: 20240103})
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, 0, filesLoaded)
}

func TestCSVLoader_FilesLoadedCountsOnlyPresentDays(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240131.csv"), []byte("PM2.5\n10\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240201.csv"), []byte("PM2.5\n20\n"), 0o644))

	loader := CSVLoader{Dir: dir}
	rows, filesLoaded, err := loader.Load(topology.DateBounds{Start: 20240130, End: 20240202})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 2, filesLoaded)
}

func TestNextDay_MonthAndYearRollover(t *testing.T) {
	require.Equal(t, 20240201, nextDay(20240131))
	require.Equal(t, 20250101, nextDay(20241231))
	require.Equal(t, 20240229, nextDay(20240228)) // 2024 is a leap year
}
