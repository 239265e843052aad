package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickb777/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transit-history/ingestor/internal/config"
	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/store"
)

type fixture struct {
	pipeline *Pipeline
	db       *store.DB
	rawDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rawDir := t.TempDir()

	db, err := store.Connect(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))

	cfg := &config.Config{
		RawDataDir:        rawDir,
		BaselineVersionID: config.DefaultBaselineVersionID,
		BaselineVariantID: config.DefaultBaselineVariantID,
	}
	return &fixture{
		pipeline: New(cfg, db, gtfs.NewSource(rawDir)),
		db:       db,
		rawDir:   rawDir,
	}
}

func (f *fixture) writeSnapshot(t *testing.T, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(f.rawDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for file, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
	}
}

// octoberSnapshot describes route R1 running a weekday service from
// 2013-10-18 (a Friday) with one removal exception on 2013-10-21.
func octoberSnapshot(headsign, shapeID string) map[string]string {
	return map[string]string{
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\nR1,1,Line One,0\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id\n" +
			"R1,A1,t1," + headsign + ",0," + shapeID + "\n",
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
			shapeID + ",47.49,19.04,1\n" + shapeID + ",47.50,19.05,2\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"A1,1,1,1,1,1,0,0,20131018,20131025\n",
		"calendar_dates.txt": "service_id,date,exception_type\nA1,20131021,2\n",
	}
}

func TestProcessDate_InitialSnapshot(t *testing.T) {
	f := newFixture(t)
	f.writeSnapshot(t, "20131018", octoberSnapshot("A", "S100"))
	day := date.New(2013, time.October, 18)

	stats, err := f.pipeline.ProcessDate(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NewRoutes)
	assert.Equal(t, 1, stats.NewVersions)
	assert.Equal(t, 1, stats.NewVariants)
	assert.Equal(t, 2, stats.NewShapePoints)
	// Weekdays 18, 21..25 of October minus nothing, plus the removal
	// override on the 21st replacing its recurring row: 6 activations.
	assert.Equal(t, 6, stats.NewActivations)

	tables, err := f.db.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tables.Versions, 1)
	assert.Equal(t, int64(config.DefaultBaselineVersionID), tables.Versions[0].VersionID)
	assert.True(t, tables.Versions[0].ValidFrom.Equal(day))
	assert.True(t, tables.Versions[0].Open())
	require.Len(t, tables.Variants, 1)
	assert.True(t, tables.Variants[0].IsMain)
}

func TestProcessDate_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.writeSnapshot(t, "20131018", octoberSnapshot("A", "S100"))
	day := date.New(2013, time.October, 18)
	ctx := context.Background()

	_, err := f.pipeline.ProcessDate(ctx, day)
	require.NoError(t, err)

	rerun, err := f.pipeline.ProcessDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.NewRoutes)
	assert.Equal(t, 0, rerun.NewVersions)
	assert.Equal(t, 0, rerun.NewVariants)
	assert.Equal(t, 0, rerun.NewActivations)
	assert.Equal(t, 0, rerun.NewShapePoints)
}

func TestProcessDate_DefinitionChangeOpensNewVersion(t *testing.T) {
	f := newFixture(t)
	f.writeSnapshot(t, "20131018", octoberSnapshot("A", "S100"))
	f.writeSnapshot(t, "20131101", map[string]string{
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\nR1,1,Line One,0\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id\n" +
			"R1,B1,t1,B,0,S101\n",
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
			"S101,47.51,19.06,1\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"B1,1,1,1,1,1,0,0,20131101,20131108\n",
		"calendar_dates.txt": "service_id,date,exception_type\n",
	})
	ctx := context.Background()

	_, err := f.pipeline.ProcessDate(ctx, date.New(2013, time.October, 18))
	require.NoError(t, err)
	stats, err := f.pipeline.ProcessDate(ctx, date.New(2013, time.November, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NewRoutes)
	assert.Equal(t, 1, stats.NewVersions)

	tables, err := f.db.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, tables.Versions, 2)

	closed := tables.Versions[0]
	assert.False(t, closed.Open())
	assert.True(t, closed.ValidTo.Equal(date.New(2013, time.October, 31)))

	open := tables.Versions[1]
	assert.Equal(t, int64(config.DefaultBaselineVersionID+1), open.VersionID)
	assert.True(t, open.ValidFrom.Equal(date.New(2013, time.November, 1)))
	assert.Equal(t, "B", open.Headsign)
	assert.Equal(t, "S101", open.MainShapeID)

	// Geometry for both shapes is kept.
	shapeIDs := make(map[string]bool)
	for _, p := range tables.Shapes {
		shapeIDs[p.ShapeID] = true
	}
	assert.Equal(t, map[string]bool{"S100": true, "S101": true}, shapeIDs)
}

func TestProcessDate_MissingSnapshotFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.ProcessDate(context.Background(), date.New(2013, time.October, 18))
	require.Error(t, err)

	// Nothing persisted.
	tables, loadErr := f.db.LoadAll(context.Background())
	require.NoError(t, loadErr)
	assert.Empty(t, tables.Routes)
}

func TestRunner_IsolatesFailedDates(t *testing.T) {
	f := newFixture(t)
	f.writeSnapshot(t, "20131025", octoberSnapshot("A", "S100"))
	// 20131018 has no snapshot directory and must fail in isolation.
	dates := []date.Date{
		date.New(2013, time.October, 18),
		date.New(2013, time.October, 25),
	}

	summary := NewRunner(f.pipeline, ProgressNone).Run(context.Background(), dates)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, []date.Date{date.New(2013, time.October, 25)}, summary.Successful)
	assert.Equal(t, []date.Date{date.New(2013, time.October, 18)}, summary.Failed)
	assert.Equal(t, 1, summary.NewVersions)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewRunner(f.pipeline, ProgressNone).Run(ctx,
		[]date.Date{date.New(2013, time.October, 18)})
	assert.Empty(t, summary.Results)
}

func TestValidProgress(t *testing.T) {
	for _, mode := range []Progress{ProgressFull, ProgressMinimal, ProgressCompact, ProgressSummary, ProgressNone} {
		if !ValidProgress(mode) {
			t.Errorf("mode %q should be valid", mode)
		}
	}
	if ValidProgress("verbose") {
		t.Error("unknown mode accepted")
	}
}
