// Command repair-versions is a standalone maintenance tool for the route
// version table: it reports interval problems and, on request, rewrites
// overlapping or dangling intervals so that each version ends the day
// before its successor starts. The regular per-date pipeline never runs
// this repair.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/transit-history/ingestor/internal/config"
	"github.com/transit-history/ingestor/internal/history"
	"github.com/transit-history/ingestor/internal/store"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", "", "Path to the history database (overrides HISTORY_DATABASE)")
	checkOnly := flag.Bool("check", false, "Only report problems, do not rewrite anything")
	flag.Parse()

	cfg := config.Load()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	database, err := store.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	tables, err := database.LoadAll(ctx)
	if err != nil {
		log.Fatalf("Failed to load tables: %v", err)
	}

	report := history.ValidateVersions(tables.Versions)
	if report.Valid() {
		log.Printf("All %d route versions are valid, nothing to repair", len(tables.Versions))
		return
	}

	log.Printf("Found %d problem(s):", len(report.Summary()))
	for _, line := range report.Summary() {
		log.Printf("  %s", line)
	}

	if *checkOnly {
		return
	}

	repaired, fixed := history.RepairOverlaps(tables.Versions)
	tables.Versions = repaired
	if err := database.SaveAll(ctx, tables); err != nil {
		log.Fatalf("Failed to persist repaired versions: %v", err)
	}
	log.Printf("Repaired %d interval(s)", fixed)
}
