package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/config"
	"github.com/transit-history/ingestor/internal/gtfs"
	"github.com/transit-history/ingestor/internal/pipeline"
	"github.com/transit-history/ingestor/internal/store"
	"github.com/transit-history/ingestor/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	// Date selection
	single := flag.String("date", "", "Process a single snapshot date (YYYYMMDD)")
	list := flag.String("dates", "", "Process a comma-separated list of dates (YYYYMMDD)")
	start := flag.String("start", "", "Start of a date range (YYYYMMDD)")
	end := flag.String("end", "", "End of a date range (YYYYMMDD)")
	days := flag.Int("days", 0, "Length of the range in days (alternative to -end)")

	// Behavior
	dbPath := flag.String("db", "", "Path to the history database (overrides HISTORY_DATABASE)")
	rawDir := flag.String("raw", "", "Raw snapshot directory (overrides RAW_DATA_DIR)")
	progress := flag.String("progress", "full", "Progress output: full, minimal, compact, summary, none")
	noResume := flag.Bool("no-resume", false, "Process every date of a range even if already processed")
	noTracker := flag.Bool("no-tracker", false, "Disable the processing-history ledger")
	showHistory := flag.Bool("history", false, "Print the processing history and exit")
	resetHistory := flag.Bool("reset-history", false, "Reset the processing history and exit")
	flag.Parse()

	cfg := config.Load()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *rawDir != "" {
		cfg.RawDataDir = *rawDir
	}

	mode := pipeline.Progress(*progress)
	if !pipeline.ValidProgress(mode) {
		log.Fatalf("Unknown progress mode %q", *progress)
	}

	ledger := tracker.Open(cfg.TrackerPath)
	if *showHistory {
		ledger.PrintSummary()
		return
	}
	if *resetHistory {
		if err := ledger.Reset(); err != nil {
			log.Fatalf("Failed to reset processing history: %v", err)
		}
		log.Println("Processing history has been reset")
		return
	}

	source := gtfs.NewSource(cfg.RawDataDir)

	dates, isRange, rangeStart, rangeEnd, err := selectDates(*single, *list, *start, *end, *days,
		source, ledger, *noTracker || *noResume)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(dates) == 0 {
		log.Println("No dates need processing")
		return
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

	p := pipeline.New(cfg, database, source)
	summary := pipeline.NewRunner(p, mode).Run(ctx, dates)

	if isRange && !*noTracker {
		if err := ledger.RecordSession(rangeStart, rangeEnd, summary.Successful, summary.Failed); err != nil {
			log.Printf("Warning: could not record processing session: %v", err)
		}
	}

	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}

// selectDates resolves the flag combination into the list of dates to
// process. Exactly one of single, list or start must be given.
func selectDates(single, list, start, end string, days int,
	source *gtfs.Source, ledger *tracker.Tracker, noResume bool) ([]date.Date, bool, date.Date, date.Date, error) {

	given := 0
	for _, s := range []string{single, list, start} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return nil, false, date.Date{}, date.Date{}, fmt.Errorf("specify exactly one of -date, -dates or -start")
	}

	switch {
	case single != "":
		d, err := date.Parse(gtfs.DateLayout, single)
		if err != nil {
			return nil, false, date.Date{}, date.Date{}, fmt.Errorf("invalid date %q, expected YYYYMMDD", single)
		}
		return []date.Date{d}, false, date.Date{}, date.Date{}, nil

	case list != "":
		var dates []date.Date
		for _, s := range strings.Split(list, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			d, err := date.Parse(gtfs.DateLayout, s)
			if err != nil {
				log.Printf("Warning: skipping invalid date %q", s)
				continue
			}
			dates = append(dates, d)
		}
		if len(dates) == 0 {
			return nil, false, date.Date{}, date.Date{}, fmt.Errorf("no valid dates in %q", list)
		}
		return dates, false, date.Date{}, date.Date{}, nil

	default:
		rangeStart, err := date.Parse(gtfs.DateLayout, start)
		if err != nil {
			return nil, false, date.Date{}, date.Date{}, fmt.Errorf("invalid start date %q, expected YYYYMMDD", start)
		}

		var rangeEnd date.Date
		switch {
		case end != "":
			rangeEnd, err = date.Parse(gtfs.DateLayout, end)
			if err != nil {
				return nil, false, date.Date{}, date.Date{}, fmt.Errorf("invalid end date %q, expected YYYYMMDD", end)
			}
		case days > 0:
			rangeEnd = rangeStart.Add(date.PeriodOfDays(days - 1))
		default:
			return nil, false, date.Date{}, date.Date{}, fmt.Errorf("a range needs -end or -days")
		}
		if rangeEnd.Before(rangeStart) {
			return nil, false, date.Date{}, date.Date{}, fmt.Errorf("start date must not be after end date")
		}

		available, err := source.AvailableDates()
		if err != nil {
			return nil, false, date.Date{}, date.Date{}, err
		}

		var dates []date.Date
		if noResume {
			for _, d := range available {
				if !d.Before(rangeStart) && !d.After(rangeEnd) {
					dates = append(dates, d)
				}
			}
		} else {
			dates = ledger.DatesToProcess(rangeStart, rangeEnd, available)
		}
		return dates, true, rangeStart, rangeEnd, nil
	}
}
