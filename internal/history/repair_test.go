package history

import (
	"testing"
	"time"

	"github.com/rickb777/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transit-history/ingestor/internal/model"
)

func version(id int64, route string, dir int, from, to date.Date) model.RouteVersion {
	return model.RouteVersion{
		VersionID: id, RouteID: route, DirectionID: dir,
		ValidFrom: from, ValidTo: to,
	}
}

func TestValidateVersions_CleanTable(t *testing.T) {
	versions := []model.RouteVersion{
		version(100000, "R1", 0, day(2013, time.October, 1), day(2013, time.October, 31)),
		version(100001, "R1", 0, day(2013, time.November, 1), date.Date{}),
	}
	report := ValidateVersions(versions)
	assert.True(t, report.Valid())
	assert.Empty(t, report.Summary())
}

func TestValidateVersions_InvalidRange(t *testing.T) {
	versions := []model.RouteVersion{
		version(100000, "R1", 0, day(2013, time.October, 10), day(2013, time.October, 1)),
	}
	report := ValidateVersions(versions)
	assert.False(t, report.Valid())
	assert.Equal(t, []int64{100000}, report.InvalidRanges)
}

func TestValidateVersions_OverlapAndMultipleOpen(t *testing.T) {
	versions := []model.RouteVersion{
		// Closed version overlapping its successor's start.
		version(100000, "R1", 0, day(2013, time.October, 1), day(2013, time.November, 5)),
		version(100001, "R1", 0, day(2013, time.November, 1), date.Date{}),
		// Two open versions on another key.
		version(100002, "R2", 1, day(2013, time.October, 1), date.Date{}),
		version(100003, "R2", 1, day(2013, time.November, 1), date.Date{}),
	}

	report := ValidateVersions(versions)
	assert.False(t, report.Valid())
	assert.Equal(t, [][2]int64{{100000, 100001}, {100002, 100003}}, report.Overlaps)

	open, ok := report.MultipleOpen[model.VersionKey{RouteID: "R2", DirectionID: 1}]
	require.True(t, ok)
	assert.Equal(t, []int64{100002, 100003}, open)
}

func TestRepairOverlaps_ClosesNonLastVersions(t *testing.T) {
	versions := []model.RouteVersion{
		version(100000, "R1", 0, day(2013, time.October, 1), date.Date{}),
		version(100001, "R1", 0, day(2013, time.November, 1), date.Date{}),
	}

	repaired, fixed := RepairOverlaps(versions)
	assert.Equal(t, 1, fixed)

	require.Len(t, repaired, 2)
	assert.True(t, repaired[0].ValidTo.Equal(day(2013, time.October, 31)))
	assert.True(t, repaired[1].Open(), "latest version stays open")

	assert.True(t, ValidateVersions(repaired).Valid())
}

func TestRepairOverlaps_TrimsOverlappingClose(t *testing.T) {
	versions := []model.RouteVersion{
		version(100000, "R1", 0, day(2013, time.October, 1), day(2013, time.November, 10)),
		version(100001, "R1", 0, day(2013, time.November, 1), date.Date{}),
	}

	repaired, fixed := RepairOverlaps(versions)
	assert.Equal(t, 1, fixed)
	assert.True(t, repaired[0].ValidTo.Equal(day(2013, time.October, 31)))
}

func TestRepairOverlaps_NoFindingsNoChanges(t *testing.T) {
	versions := []model.RouteVersion{
		version(100000, "R1", 0, day(2013, time.October, 1), day(2013, time.October, 31)),
		version(100001, "R1", 0, day(2013, time.November, 1), date.Date{}),
	}

	repaired, fixed := RepairOverlaps(versions)
	assert.Equal(t, 0, fixed)
	assert.Equal(t, versions, repaired)
}
