package history

import (
	"log"
	"sort"

	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/model"
)

// Activity is one derived "this definition operates on this date" fact,
// keyed by the trip-level definition tuple. ExceptionType is
// model.ExceptionNone for rows derived from the recurring calendar.
type Activity struct {
	RouteID       string
	DirectionID   int
	ShapeID       string
	Headsign      string
	Date          date.Date
	ExceptionType int
}

type activityKey struct {
	RouteID     string
	DirectionID int
	ShapeID     string
	Headsign    string
	Date        date.Date
}

func (a Activity) key() activityKey {
	return activityKey{
		RouteID:     a.RouteID,
		DirectionID: a.DirectionID,
		ShapeID:     a.ShapeID,
		Headsign:    a.Headsign,
		Date:        a.Date,
	}
}

// BuildRecurringActivity derives activity from the expanded weekly
// calendar: every date of every service whose trips carry the definition
// tuple, tagged with no exception type.
func BuildRecurringActivity(trips []gtfs.Trip, svc ServiceDates) []Activity {
	seen := make(map[activityKey]bool)
	var out []Activity
	for _, trip := range trips {
		for _, d := range svc.Dates[trip.ServiceID] {
			act := Activity{
				RouteID:       trip.RouteID,
				DirectionID:   trip.DirectionID,
				ShapeID:       trip.ShapeID,
				Headsign:      trip.TripHeadsign,
				Date:          d,
				ExceptionType: model.ExceptionNone,
			}
			if k := act.key(); !seen[k] {
				seen[k] = true
				out = append(out, act)
			}
		}
	}
	return out
}

// BuildExceptionActivity derives activity from explicit calendar
// exceptions joined to the trips of the excepted services. Where several
// exceptions land on the same tuple and date, the first one wins.
func BuildExceptionActivity(trips []gtfs.Trip, exceptions []gtfs.CalendarDate) []Activity {
	tripsByService := make(map[string][]gtfs.Trip)
	for _, trip := range trips {
		tripsByService[trip.ServiceID] = append(tripsByService[trip.ServiceID], trip)
	}

	seen := make(map[activityKey]bool)
	var out []Activity
	for _, exc := range exceptions {
		for _, trip := range tripsByService[exc.ServiceID] {
			act := Activity{
				RouteID:       trip.RouteID,
				DirectionID:   trip.DirectionID,
				ShapeID:       trip.ShapeID,
				Headsign:      trip.TripHeadsign,
				Date:          exc.Date,
				ExceptionType: exc.ExceptionType,
			}
			if k := act.key(); !seen[k] {
				seen[k] = true
				out = append(out, act)
			}
		}
	}
	return out
}

// MergeActivity unions the recurring and exception sources. Where both
// sources produce the same tuple and date, the exception row wins and the
// recurring row is dropped as a duplicate.
func MergeActivity(recurring, exceptional []Activity) []Activity {
	merged := make([]Activity, 0, len(recurring)+len(exceptional))
	merged = append(merged, exceptional...)

	overridden := make(map[activityKey]bool, len(exceptional))
	for _, act := range exceptional {
		overridden[act.key()] = true
	}

	dropped := 0
	for _, act := range recurring {
		if overridden[act.key()] {
			dropped++
			continue
		}
		merged = append(merged, act)
	}
	if dropped > 0 {
		log.Printf("Dropped %d recurring activity row(s) overridden by explicit exceptions", dropped)
	}

	sort.Slice(merged, func(i, j int) bool { return lessActivity(merged[i], merged[j]) })
	return merged
}

func lessActivity(a, b Activity) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.RouteID != b.RouteID {
		return a.RouteID < b.RouteID
	}
	if a.DirectionID != b.DirectionID {
		return a.DirectionID < b.DirectionID
	}
	if a.ShapeID != b.ShapeID {
		return a.ShapeID < b.ShapeID
	}
	return a.Headsign < b.Headsign
}

// MergeResult carries the updated activation log and this date's counts.
type MergeResult struct {
	Activations    []model.Activation
	NewActivations int

	// ReferencedShapes lists every shape id an activation touched this
	// date; the geometry reconciler backfills them.
	ReferencedShapes map[string]bool
}

// ApplyActivations resolves the merged activity against the open route
// versions, assigns variant identities through the registry and appends
// activations to the persisted log. A newly computed (date, variant,
// exception_type) triple is appended only when that exact triple is not
// already present; a previously persisted row with a different exception
// type for the same date and variant is left in place.
func ApplyActivations(versions []model.RouteVersion, activity []Activity,
	reg *Registry, persisted []model.Activation) MergeResult {

	openByKey := make(map[model.VersionKey]model.RouteVersion)
	for _, v := range versions {
		if v.Open() {
			openByKey[v.Key()] = v
		}
	}

	type triple struct {
		date          date.Date
		variantID     int64
		exceptionType int
	}
	existing := make(map[triple]bool, len(persisted))
	for _, a := range persisted {
		existing[triple{a.Date, a.ShapeVariantID, a.ExceptionType}] = true
	}

	result := MergeResult{
		Activations:      append([]model.Activation(nil), persisted...),
		ReferencedShapes: make(map[string]bool),
	}

	for _, act := range activity {
		version, ok := openByKey[model.VersionKey{RouteID: act.RouteID, DirectionID: act.DirectionID}]
		if !ok {
			continue
		}

		variantID := reg.Ensure(model.VariantKey{
			VersionID: version.VersionID,
			ShapeID:   act.ShapeID,
			Headsign:  act.Headsign,
			IsMain:    act.ShapeID == version.MainShapeID,
		})
		result.ReferencedShapes[act.ShapeID] = true

		t := triple{act.Date, variantID, act.ExceptionType}
		if existing[t] {
			continue
		}
		existing[t] = true
		result.Activations = append(result.Activations, model.Activation{
			Date:           act.Date,
			ShapeVariantID: variantID,
			ExceptionType:  act.ExceptionType,
		})
		result.NewActivations++
	}

	sort.Slice(result.Activations, func(i, j int) bool {
		a, b := result.Activations[i], result.Activations[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.ShapeVariantID != b.ShapeVariantID {
			return a.ShapeVariantID < b.ShapeVariantID
		}
		return a.ExceptionType < b.ExceptionType
	})

	return result
}
