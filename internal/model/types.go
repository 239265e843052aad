package model

import "github.com/rickb777/date"

// Route is the immutable master record for a transit line. It is created
// the first time a route_id is seen and never versioned or deleted.
type Route struct {
	RouteID   string
	AgencyID  string
	ShortName string
	Mode      int
	Color     string
	TextColor string
}

// RouteVersion is a time-bounded definition of one route+direction.
// ValidTo is the zero Date while the version is open; for a fixed
// (RouteID, DirectionID) at most one version may be open at a time.
type RouteVersion struct {
	VersionID       int64
	RouteID         string
	DirectionID     int
	LongName        string
	Description     string
	ValidFrom       date.Date
	ValidTo         date.Date
	MainShapeID     string
	Headsign        string
	ParentVersionID int64
	Note            string
}

// Open reports whether the version has no end-of-validity date yet.
func (v RouteVersion) Open() bool {
	return v.ValidTo.IsZero()
}

// VersionKey identifies the route+direction a version belongs to.
type VersionKey struct {
	RouteID     string
	DirectionID int
}

// Key returns the route+direction key of the version.
func (v RouteVersion) Key() VersionKey {
	return VersionKey{RouteID: v.RouteID, DirectionID: v.DirectionID}
}

// ShapeVariant records one distinct path geometry used by a route version.
// Rows are append-only; the identity key is (VersionID, ShapeID, Headsign,
// IsMain), so a shape that becomes "main" under a newer version is a new
// variant, never a mutation of an old one.
type ShapeVariant struct {
	ShapeVariantID int64
	VersionID      int64
	ShapeID        string
	Headsign       string
	IsMain         bool
	Note           string
}

// VariantKey is the identity key of a shape variant.
type VariantKey struct {
	VersionID int64
	ShapeID   string
	Headsign  string
	IsMain    bool
}

// Key returns the identity key of the variant.
func (v ShapeVariant) Key() VariantKey {
	return VariantKey{VersionID: v.VersionID, ShapeID: v.ShapeID, Headsign: v.Headsign, IsMain: v.IsMain}
}

// Exception types carried on an activation. ExceptionNone marks regular
// recurring service (persisted as NULL); added/removed come from explicit
// calendar exceptions.
const (
	ExceptionNone    = 0
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Activation records that a shape variant operates on a calendar date.
type Activation struct {
	Date           date.Date
	ShapeVariantID int64
	ExceptionType  int
}

// ShapePoint is one point of a path geometry, ordered by
// (ShapeID, Sequence).
type ShapePoint struct {
	ShapeID      string
	Lat          float64
	Lon          float64
	Sequence     int
	DistTraveled float64
	ExternalRef  string
}

// TemporaryChange is a pass-through detour record. The pipeline loads and
// saves it unchanged.
type TemporaryChange struct {
	DetourID         string
	RouteID          string
	StartDate        date.Date
	EndDate          date.Date
	AffectsVersionID int64
	Description      string
}
