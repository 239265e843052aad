package gtfs

import (
	"time"

	"github.com/rickb777/date"
)

// Snapshot holds one dated extract of the published schedule, fully
// materialized in memory.
type Snapshot struct {
	Date          date.Date
	Routes        []Route
	Trips         []Trip
	Shapes        map[string][]ShapePoint // keyed by shape_id
	Calendar      []Calendar
	CalendarDates []CalendarDate

	// HasCalendar is false when calendar.txt was absent from the snapshot.
	// That is tolerated: services may still appear via explicit exceptions.
	HasCalendar bool
}

// Route represents a row from routes.txt
type Route struct {
	RouteID        string
	AgencyID       string
	RouteShortName string
	RouteLongName  string
	RouteDesc      string
	RouteType      int
	RouteColor     string
	RouteTextColor string
}

// Trip represents a row from trips.txt
type Trip struct {
	RouteID      string
	ServiceID    string
	TripID       string
	TripHeadsign string
	DirectionID  int
	ShapeID      string
}

// ShapePoint represents a row from shapes.txt
type ShapePoint struct {
	ShapeID           string
	ShapePtLat        float64
	ShapePtLon        float64
	ShapePtSequence   int
	ShapeDistTraveled float64
	ShapeExternalRef  string
}

// Calendar represents a weekly recurring service rule from calendar.txt.
// Weekdays is indexed Monday=0 .. Sunday=6.
type Calendar struct {
	ServiceID string
	Weekdays  [7]bool
	StartDate date.Date
	EndDate   date.Date
}

// ActiveOn reports whether the rule is active on the given weekday.
func (c Calendar) ActiveOn(w time.Weekday) bool {
	// time.Weekday has Sunday=0, our flags start at Monday.
	return c.Weekdays[(int(w)+6)%7]
}

// CalendarDate represents an explicit service exception from
// calendar_dates.txt. ExceptionType is 1 (added) or 2 (removed).
type CalendarDate struct {
	ServiceID     string
	Date          date.Date
	ExceptionType int
}
