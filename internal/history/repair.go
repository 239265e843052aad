package history

import (
	"fmt"
	"sort"

	"github.com/transit-history/ingestor/internal/model"
)

// ValidationReport lists the interval problems found in a version table.
type ValidationReport struct {
	// Versions whose ValidTo precedes their ValidFrom.
	InvalidRanges []int64

	// Pairs of versions for the same key whose intervals overlap,
	// earlier version id first.
	Overlaps [][2]int64

	// Keys with more than one open version, with the open version ids.
	MultipleOpen map[model.VersionKey][]int64
}

// Valid reports whether no problems were found.
func (r *ValidationReport) Valid() bool {
	return len(r.InvalidRanges) == 0 && len(r.Overlaps) == 0 && len(r.MultipleOpen) == 0
}

// Summary renders the report as one line per finding.
func (r *ValidationReport) Summary() []string {
	var lines []string
	for _, id := range r.InvalidRanges {
		lines = append(lines, fmt.Sprintf("version %d: valid_to precedes valid_from", id))
	}
	for _, pair := range r.Overlaps {
		lines = append(lines, fmt.Sprintf("versions %d and %d overlap", pair[0], pair[1]))
	}
	for key, ids := range r.MultipleOpen {
		lines = append(lines, fmt.Sprintf("route %s direction %d has %d open versions %v",
			key.RouteID, key.DirectionID, len(ids), ids))
	}
	sort.Strings(lines)
	return lines
}

// ValidateVersions checks a version table for invalid date ranges,
// overlapping intervals and keys with multiple open versions.
func ValidateVersions(versions []model.RouteVersion) *ValidationReport {
	report := &ValidationReport{MultipleOpen: make(map[model.VersionKey][]int64)}

	for _, v := range versions {
		if !v.Open() && v.ValidTo.Before(v.ValidFrom) {
			report.InvalidRanges = append(report.InvalidRanges, v.VersionID)
		}
	}

	for key, group := range groupByKey(versions) {
		var open []int64
		for _, v := range group {
			if v.Open() {
				open = append(open, v.VersionID)
			}
		}
		if len(open) > 1 {
			report.MultipleOpen[key] = open
		}

		for i := 0; i+1 < len(group); i++ {
			cur, next := group[i], group[i+1]
			if cur.Open() || !cur.ValidTo.Before(next.ValidFrom) {
				report.Overlaps = append(report.Overlaps, [2]int64{cur.VersionID, next.VersionID})
			}
		}
	}

	sort.Slice(report.InvalidRanges, func(i, j int) bool {
		return report.InvalidRanges[i] < report.InvalidRanges[j]
	})
	sort.Slice(report.Overlaps, func(i, j int) bool {
		return report.Overlaps[i][0] < report.Overlaps[j][0]
	})

	return report
}

// RepairOverlaps rewrites a version table so that within each key every
// version except the latest ends the day before its successor starts.
// This is a standalone maintenance operation; the per-date resolution path
// never calls it.
func RepairOverlaps(versions []model.RouteVersion) ([]model.RouteVersion, int) {
	repaired := append([]model.RouteVersion(nil), versions...)

	index := make(map[int64]int, len(repaired))
	for i, v := range repaired {
		index[v.VersionID] = i
	}

	fixed := 0
	for _, group := range groupByKey(repaired) {
		for i := 0; i+1 < len(group); i++ {
			cur, next := group[i], group[i+1]
			if cur.Open() || !cur.ValidTo.Before(next.ValidFrom) {
				repaired[index[cur.VersionID]].ValidTo = next.ValidFrom.Add(-1)
				fixed++
			}
		}
	}

	return repaired, fixed
}

// groupByKey splits a version table per route+direction, each group sorted
// by ValidFrom ascending.
func groupByKey(versions []model.RouteVersion) map[model.VersionKey][]model.RouteVersion {
	groups := make(map[model.VersionKey][]model.RouteVersion)
	for _, v := range versions {
		groups[v.Key()] = append(groups[v.Key()], v)
	}
	for key := range groups {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].ValidFrom.Equal(group[j].ValidFrom) {
				return group[i].ValidFrom.Before(group[j].ValidFrom)
			}
			return group[i].VersionID < group[j].VersionID
		})
	}
	return groups
}
