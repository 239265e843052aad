// Package pipeline sequences one snapshot date through the history
// engine: load snapshot and persisted tables, resolve versions, merge
// activations, backfill geometry, persist. Each date is isolated; a
// failure rolls the date back and the run continues.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/config"
	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/history"
	"github.com/transit-history/ingestor/internal/store"
)

// Pipeline processes snapshot dates against one history database.
type Pipeline struct {
	cfg    *config.Config
	db     *store.DB
	source *gtfs.Source
}

// New creates a pipeline over the given database and snapshot source.
func New(cfg *config.Config, db *store.DB, source *gtfs.Source) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, source: source}
}

// DateStats summarizes what one date added to the history.
type DateStats struct {
	NewRoutes      int
	NewVersions    int
	NewVariants    int
	NewActivations int
	NewShapePoints int
	Diagnostics    history.Diagnostics
}

// ProcessDate runs the full load-resolve-merge-persist sequence for one
// snapshot date. On error nothing of the date is persisted.
func (p *Pipeline) ProcessDate(ctx context.Context, day date.Date) (*DateStats, error) {
	snap, err := p.source.Load(day)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	tables, err := p.db.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted tables: %w", err)
	}

	stats := &DateStats{}
	diags := &stats.Diagnostics

	svc := history.ExpandCalendar(snap.Calendar, snap.Trips, diags)

	resolver := history.NewResolver(p.cfg.BaselineVersionID)
	resolved := resolver.Resolve(tables.Routes, tables.Versions, snap, svc, diags)
	stats.NewRoutes = resolved.NewRoutes
	stats.NewVersions = resolved.NewVersions

	recurring := history.BuildRecurringActivity(snap.Trips, svc)
	exceptional := history.BuildExceptionActivity(snap.Trips, snap.CalendarDates)
	merged := history.MergeActivity(recurring, exceptional)

	registry := history.NewRegistry(p.cfg.BaselineVariantID, tables.Variants)
	activations := history.ApplyActivations(resolved.Versions, merged, registry, tables.Activations)
	stats.NewVariants = registry.Created()
	stats.NewActivations = activations.NewActivations

	shapes, addedPoints := history.ReconcileShapes(tables.Shapes, activations.ReferencedShapes, snap.Shapes, diags)
	stats.NewShapePoints = addedPoints
	if addedPoints > 0 {
		shapeStats := history.SummarizeShapes(shapes)
		log.Printf("Geometry table: %d points across %d shapes (%.1f avg per shape)",
			shapeStats.TotalPoints, shapeStats.UniqueShapes, shapeStats.AvgPoints)
	}

	updated := &store.Tables{
		Routes:           resolved.Routes,
		Versions:         resolved.Versions,
		Variants:         registry.Variants(),
		Activations:      activations.Activations,
		Shapes:           shapes,
		TemporaryChanges: tables.TemporaryChanges,
	}
	if err := p.db.SaveAll(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to persist tables: %w", err)
	}

	log.Printf("Date %s: +%d routes, +%d versions, +%d variants, +%d activations, +%d geometry points",
		day, stats.NewRoutes, stats.NewVersions, stats.NewVariants, stats.NewActivations, stats.NewShapePoints)

	return stats, nil
}
