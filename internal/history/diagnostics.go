package history

import "log"

// Diagnostics collects the non-fatal findings of one date's processing.
// Every entry has already been logged when it is recorded; the pipeline
// only uses the collected values for the run summary.
type Diagnostics struct {
	// Services whose weekly rule has no active weekday.
	EmptyWeekdayServices []string

	// Routes referenced by trips but absent from the snapshot's route
	// master list; their keys were skipped this date.
	SkippedRoutes []string

	// Route ids appearing more than once in the master table after the
	// update.
	DuplicateRouteIDs []string

	// Number of open versions closed beyond the expected single one
	// (multiple simultaneously open versions found for one key).
	HealedOverlaps int

	// Shape ids referenced by a variant but absent from the snapshot's
	// shape table; geometry for them is permanently missing this date.
	OrphanShapes []string
}

func (d *Diagnostics) warnf(format string, args ...interface{}) {
	log.Printf("Warning: "+format, args...)
}

// Count returns the total number of recorded findings.
func (d *Diagnostics) Count() int {
	return len(d.EmptyWeekdayServices) + len(d.SkippedRoutes) +
		len(d.DuplicateRouteIDs) + d.HealedOverlaps + len(d.OrphanShapes)
}
