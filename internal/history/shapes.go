package history

import (
	"log"
	"sort"

	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/model"
)

// ReconcileShapes backfills geometry for shape ids referenced by this
// date's variants but missing from the persisted shape table. Idempotent:
// already-present shapes are never touched. Ids absent from the snapshot's
// shape table are reported and proceed without geometry.
func ReconcileShapes(persisted []model.ShapePoint, referenced map[string]bool,
	snapshot map[string][]gtfs.ShapePoint, diags *Diagnostics) ([]model.ShapePoint, int) {

	have := make(map[string]bool)
	for _, p := range persisted {
		have[p.ShapeID] = true
	}

	var missing []string
	for id := range referenced {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return persisted, 0
	}
	sort.Strings(missing)
	log.Printf("Backfilling geometry for %d missing shape id(s)", len(missing))

	updated := append([]model.ShapePoint(nil), persisted...)
	added := 0
	for _, id := range missing {
		points, ok := snapshot[id]
		if !ok {
			diags.OrphanShapes = append(diags.OrphanShapes, id)
			diags.warnf("shape %s is referenced by a variant but absent from the snapshot, geometry stays missing", id)
			continue
		}
		for _, p := range points {
			updated = append(updated, model.ShapePoint{
				ShapeID:      p.ShapeID,
				Lat:          p.ShapePtLat,
				Lon:          p.ShapePtLon,
				Sequence:     p.ShapePtSequence,
				DistTraveled: p.ShapeDistTraveled,
				ExternalRef:  p.ShapeExternalRef,
			})
			added++
		}
	}

	sort.Slice(updated, func(i, j int) bool {
		if updated[i].ShapeID != updated[j].ShapeID {
			return updated[i].ShapeID < updated[j].ShapeID
		}
		return updated[i].Sequence < updated[j].Sequence
	})

	return updated, added
}

// ShapeStats summarizes a geometry table.
type ShapeStats struct {
	TotalPoints  int
	UniqueShapes int
	MinPoints    int
	MaxPoints    int
	AvgPoints    float64
}

// SummarizeShapes computes per-shape point statistics.
func SummarizeShapes(points []model.ShapePoint) ShapeStats {
	counts := make(map[string]int)
	for _, p := range points {
		counts[p.ShapeID]++
	}

	stats := ShapeStats{TotalPoints: len(points), UniqueShapes: len(counts)}
	for _, n := range counts {
		if stats.MinPoints == 0 || n < stats.MinPoints {
			stats.MinPoints = n
		}
		if n > stats.MaxPoints {
			stats.MaxPoints = n
		}
	}
	if stats.UniqueShapes > 0 {
		stats.AvgPoints = float64(stats.TotalPoints) / float64(stats.UniqueShapes)
	}
	return stats
}
