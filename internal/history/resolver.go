package history

import (
	"log"
	"sort"

	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/model"
)

// Resolver detects route definition changes between snapshots and manages
// the versioned validity intervals. Version ids are allocated from the
// persisted high-water mark, starting at the injected baseline when the
// table is empty.
type Resolver struct {
	baselineVersionID int64
}

// NewResolver creates a resolver with the given baseline version id.
func NewResolver(baselineVersionID int64) *Resolver {
	return &Resolver{baselineVersionID: baselineVersionID}
}

// ResolveResult carries the updated route master and version tables plus
// the counts of rows added this date.
type ResolveResult struct {
	Routes      []model.Route
	Versions    []model.RouteVersion
	NewRoutes   int
	NewVersions int
}

// dominantDef is the top-ranked definition of one route+direction in a
// snapshot: the (shape, headsign) pair served by the most trips.
type dominantDef struct {
	key       model.VersionKey
	shapeID   string
	headsign  string
	validFrom date.Date
	tripCount int
}

// Resolve computes the dominant definition per route+direction from the
// snapshot's trips and reconciles it against the currently open versions.
// Re-ingesting an unchanged snapshot creates nothing.
func (r *Resolver) Resolve(routes []model.Route, versions []model.RouteVersion,
	snap *gtfs.Snapshot, svc ServiceDates, diags *Diagnostics) ResolveResult {

	dominants := rankDominants(snap.Trips, svc)

	snapRoutes := make(map[string]gtfs.Route, len(snap.Routes))
	for _, rt := range snap.Routes {
		snapRoutes[rt.RouteID] = rt
	}

	result := ResolveResult{
		Routes:   append([]model.Route(nil), routes...),
		Versions: append([]model.RouteVersion(nil), versions...),
	}

	knownRoutes := make(map[string]bool, len(routes))
	for _, rt := range routes {
		knownRoutes[rt.RouteID] = true
	}

	// Index of open versions per key, by position in the versions slice.
	openIdx := make(map[model.VersionKey][]int)
	for i, v := range result.Versions {
		if v.Open() {
			openIdx[v.Key()] = append(openIdx[v.Key()], i)
		}
	}

	nextID := r.nextVersionID(result.Versions)

	for _, dom := range dominants {
		master, ok := snapRoutes[dom.key.RouteID]
		if !ok {
			diags.SkippedRoutes = append(diags.SkippedRoutes, dom.key.RouteID)
			diags.warnf("route %s referenced by trips but absent from the snapshot's route list, skipping", dom.key.RouteID)
			continue
		}

		if !knownRoutes[master.RouteID] {
			knownRoutes[master.RouteID] = true
			result.Routes = append(result.Routes, model.Route{
				RouteID:   master.RouteID,
				AgencyID:  master.AgencyID,
				ShortName: master.RouteShortName,
				Mode:      master.RouteType,
				Color:     master.RouteColor,
				TextColor: master.RouteTextColor,
			})
			result.NewRoutes++
		}

		open := openIdx[dom.key]
		if matchesOpen(result.Versions, open, dom) {
			// Effective definition unchanged, nothing to version.
			continue
		}

		if len(open) > 1 {
			diags.HealedOverlaps += len(open) - 1
			diags.warnf("route %s direction %d had %d simultaneously open versions, closing all of them",
				dom.key.RouteID, dom.key.DirectionID, len(open))
		}
		validTo := dom.validFrom.Add(-1)
		for _, i := range open {
			result.Versions[i].ValidTo = validTo
		}
		if len(open) > 0 {
			log.Printf("Closed %d version(s) for route %s direction %d at %s",
				len(open), dom.key.RouteID, dom.key.DirectionID, validTo)
		}

		result.Versions = append(result.Versions, model.RouteVersion{
			VersionID:   nextID,
			RouteID:     dom.key.RouteID,
			DirectionID: dom.key.DirectionID,
			LongName:    master.RouteLongName,
			Description: master.RouteDesc,
			ValidFrom:   dom.validFrom,
			MainShapeID: dom.shapeID,
			Headsign:    dom.headsign,
		})
		openIdx[dom.key] = []int{len(result.Versions) - 1}
		nextID++
		result.NewVersions++
	}

	reportDuplicateRoutes(result.Routes, diags)

	return result
}

func (r *Resolver) nextVersionID(versions []model.RouteVersion) int64 {
	next := r.baselineVersionID
	for _, v := range versions {
		if v.VersionID >= next {
			next = v.VersionID + 1
		}
	}
	return next
}

// matchesOpen reports whether any open version already carries the
// dominant shape and headsign.
func matchesOpen(versions []model.RouteVersion, open []int, dom dominantDef) bool {
	for _, i := range open {
		if versions[i].MainShapeID == dom.shapeID && versions[i].Headsign == dom.headsign {
			return true
		}
	}
	return false
}

// rankDominants groups trips by (route, direction, shape, headsign), ranks
// the groups within each route+direction by trip count descending with the
// earliest first-active-date as tiebreak, and returns the winners sorted by
// key. Groups whose services have no first active date cannot anchor a
// validity interval and are ignored.
func rankDominants(trips []gtfs.Trip, svc ServiceDates) []dominantDef {
	type groupKey struct {
		key      model.VersionKey
		shapeID  string
		headsign string
	}
	type group struct {
		count int
		first date.Date
		dated bool
	}

	groups := make(map[groupKey]*group)
	for _, trip := range trips {
		gk := groupKey{
			key:      model.VersionKey{RouteID: trip.RouteID, DirectionID: trip.DirectionID},
			shapeID:  trip.ShapeID,
			headsign: trip.TripHeadsign,
		}
		g, ok := groups[gk]
		if !ok {
			g = &group{}
			groups[gk] = g
		}
		g.count++
		if first, ok := svc.First[trip.ServiceID]; ok {
			if !g.dated || first.Before(g.first) {
				g.first = first
				g.dated = true
			}
		}
	}

	best := make(map[model.VersionKey]dominantDef)
	for gk, g := range groups {
		if !g.dated {
			continue
		}
		cand := dominantDef{
			key:       gk.key,
			shapeID:   gk.shapeID,
			headsign:  gk.headsign,
			validFrom: g.first,
			tripCount: g.count,
		}
		cur, ok := best[gk.key]
		if !ok || betterDominant(cand, cur) {
			best[gk.key] = cand
		}
	}

	out := make([]dominantDef, 0, len(best))
	for _, dom := range best {
		out = append(out, dom)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.RouteID != out[j].key.RouteID {
			return out[i].key.RouteID < out[j].key.RouteID
		}
		return out[i].key.DirectionID < out[j].key.DirectionID
	})
	return out
}

func betterDominant(a, b dominantDef) bool {
	if a.tripCount != b.tripCount {
		return a.tripCount > b.tripCount
	}
	if !a.validFrom.Equal(b.validFrom) {
		return a.validFrom.Before(b.validFrom)
	}
	// Stable order for fully tied groups.
	if a.shapeID != b.shapeID {
		return a.shapeID < b.shapeID
	}
	return a.headsign < b.headsign
}

func reportDuplicateRoutes(routes []model.Route, diags *Diagnostics) {
	seen := make(map[string]int, len(routes))
	for _, rt := range routes {
		seen[rt.RouteID]++
	}
	for id, n := range seen {
		if n > 1 {
			diags.DuplicateRouteIDs = append(diags.DuplicateRouteIDs, id)
			diags.warnf("route_id %s appears %d times in the route master table", id, n)
		}
	}
	sort.Strings(diags.DuplicateRouteIDs)
}
