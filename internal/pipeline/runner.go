package pipeline

import (
	"context"
	"log"

	"github.com/rickb777/date"
)

// Progress selects how much per-date output a run emits.
type Progress string

const (
	ProgressFull    Progress = "full"    // headers plus component detail
	ProgressMinimal Progress = "minimal" // one header per date
	ProgressCompact Progress = "compact" // one status line per date
	ProgressSummary Progress = "summary" // final summary only
	ProgressNone    Progress = "none"
)

// ValidProgress reports whether the mode is one of the known settings.
func ValidProgress(mode Progress) bool {
	switch mode {
	case ProgressFull, ProgressMinimal, ProgressCompact, ProgressSummary, ProgressNone:
		return true
	}
	return false
}

// DateResult is the outcome of one date in a run.
type DateResult struct {
	Date  date.Date
	Stats *DateStats
	Err   error
}

// Summary aggregates a whole run.
type Summary struct {
	Results    []DateResult
	Successful []date.Date
	Failed     []date.Date

	NewRoutes      int
	NewVersions    int
	NewVariants    int
	NewActivations int
	NewShapePoints int
	Diagnostics    int
}

// Runner drives the pipeline over a list of dates with per-date failure
// isolation.
type Runner struct {
	pipeline *Pipeline
	progress Progress
}

// NewRunner wraps a pipeline with progress reporting.
func NewRunner(p *Pipeline, progress Progress) *Runner {
	return &Runner{pipeline: p, progress: progress}
}

// Run processes the dates in order. A failed date is recorded and the
// loop continues; only a cancelled context stops the run early.
func (r *Runner) Run(ctx context.Context, dates []date.Date) *Summary {
	summary := &Summary{}

	for i, day := range dates {
		if ctx.Err() != nil {
			break
		}

		switch r.progress {
		case ProgressFull, ProgressMinimal:
			log.Printf("--- Processing %s (%d/%d) ---", day, i+1, len(dates))
		}

		stats, err := r.pipeline.ProcessDate(ctx, day)
		result := DateResult{Date: day, Stats: stats, Err: err}
		summary.Results = append(summary.Results, result)

		if err != nil {
			summary.Failed = append(summary.Failed, day)
			switch r.progress {
			case ProgressFull, ProgressMinimal:
				log.Printf("FAILED %s: %v", day, err)
			case ProgressCompact:
				log.Printf("%s (%d/%d): failed: %v", day, i+1, len(dates), err)
			}
			continue
		}

		summary.Successful = append(summary.Successful, day)
		summary.NewRoutes += stats.NewRoutes
		summary.NewVersions += stats.NewVersions
		summary.NewVariants += stats.NewVariants
		summary.NewActivations += stats.NewActivations
		summary.NewShapePoints += stats.NewShapePoints
		summary.Diagnostics += stats.Diagnostics.Count()

		if r.progress == ProgressCompact {
			log.Printf("%s (%d/%d): ok", day, i+1, len(dates))
		}
	}

	if r.progress != ProgressNone {
		summary.Print()
	}
	return summary
}

// Print logs the run totals.
func (s *Summary) Print() {
	log.Printf("=== Run summary ===")
	log.Printf("Dates: %d total, %d successful, %d failed",
		len(s.Results), len(s.Successful), len(s.Failed))
	log.Printf("Added: %d routes, %d versions, %d variants, %d activations, %d geometry points",
		s.NewRoutes, s.NewVersions, s.NewVariants, s.NewActivations, s.NewShapePoints)
	if s.Diagnostics > 0 {
		log.Printf("Diagnostics recorded: %d", s.Diagnostics)
	}
	if len(s.Failed) > 0 {
		log.Printf("Failed dates: %v", s.Failed)
	}
}
