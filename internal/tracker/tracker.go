// Package tracker keeps the processing-history ledger: which snapshot
// dates were processed successfully, which failed, and the recorded
// sessions. It lets a range run resume after an interruption without
// redoing finished dates.
package tracker

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rickb777/date"
)

// Session is one recorded processing run over a date range.
type Session struct {
	SessionID  string      `json:"session_id"`
	Timestamp  time.Time   `json:"timestamp"`
	StartDate  date.Date   `json:"start_date"`
	EndDate    date.Date   `json:"end_date"`
	Successful []date.Date `json:"successful_dates"`
	Failed     []date.Date `json:"failed_dates"`
}

type history struct {
	LastUpdate     time.Time   `json:"last_update"`
	LastSuccessful date.Date   `json:"last_successful_date"`
	ProcessedDates []date.Date `json:"processed_dates"`
	FailedDates    []date.Date `json:"failed_dates"`
	Sessions       []Session   `json:"sessions"`
}

// Tracker reads and writes the ledger file.
type Tracker struct {
	path    string
	history history
}

// Open loads the ledger at path, starting fresh when the file is missing
// or unreadable.
func Open(path string) *Tracker {
	t := &Tracker{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	if err := json.Unmarshal(data, &t.history); err != nil {
		log.Printf("Warning: could not read processing history %s, starting fresh: %v", path, err)
		t.history = history{}
	}
	return t
}

// Processed reports whether the date was already processed successfully.
func (t *Tracker) Processed(d date.Date) bool {
	for _, p := range t.history.ProcessedDates {
		if p.Equal(d) {
			return true
		}
	}
	return false
}

// LastProcessed returns the latest successfully processed date that is
// still among the available snapshot dates.
func (t *Tracker) LastProcessed(available []date.Date) (date.Date, bool) {
	avail := make(map[date.Date]bool, len(available))
	for _, d := range available {
		avail[d] = true
	}

	var last date.Date
	found := false
	for _, d := range t.history.ProcessedDates {
		if avail[d] && (!found || d.After(last)) {
			last = d
			found = true
		}
	}
	return last, found
}

// DatesToProcess filters the requested inclusive range down to available
// snapshot dates that come after the last processed one.
func (t *Tracker) DatesToProcess(start, end date.Date, available []date.Date) []date.Date {
	var requested []date.Date
	for _, d := range available {
		if !d.Before(start) && !d.After(end) {
			requested = append(requested, d)
		}
	}

	last, found := t.LastProcessed(available)
	if !found {
		log.Printf("Starting fresh, %d date(s) to process", len(requested))
		return requested
	}

	var todo []date.Date
	for _, d := range requested {
		if d.After(last) {
			todo = append(todo, d)
		}
	}
	if len(todo) > 0 {
		log.Printf("Resuming after %s: %d of %d available date(s) still to process", last, len(todo), len(requested))
	} else {
		log.Printf("All dates up to %s already processed (last: %s)", end, last)
	}
	return todo
}

// RecordSession appends a session to the ledger and folds its outcome
// into the processed/failed date sets. A date that failed earlier but
// succeeded now leaves the failed set.
func (t *Tracker) RecordSession(start, end date.Date, successful, failed []date.Date) error {
	t.history.Sessions = append(t.history.Sessions, Session{
		SessionID:  uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		StartDate:  start,
		EndDate:    end,
		Successful: successful,
		Failed:     failed,
	})

	t.history.ProcessedDates = mergeDates(t.history.ProcessedDates, successful, nil)
	t.history.FailedDates = mergeDates(t.history.FailedDates, failed, successful)

	for _, d := range successful {
		if d.After(t.history.LastSuccessful) {
			t.history.LastSuccessful = d
		}
	}
	t.history.LastUpdate = time.Now().UTC()

	return t.save()
}

// MarkProcessed manually records one date as processed.
func (t *Tracker) MarkProcessed(d date.Date) error {
	if t.Processed(d) {
		return nil
	}
	t.history.ProcessedDates = mergeDates(t.history.ProcessedDates, []date.Date{d}, nil)
	t.history.FailedDates = mergeDates(t.history.FailedDates, nil, []date.Date{d})
	if d.After(t.history.LastSuccessful) {
		t.history.LastSuccessful = d
	}
	t.history.LastUpdate = time.Now().UTC()
	return t.save()
}

// Reset discards the whole ledger.
func (t *Tracker) Reset() error {
	t.history = history{}
	return t.save()
}

// PrintSummary logs the ledger's state.
func (t *Tracker) PrintSummary() {
	log.Printf("Processing history: %d processed, %d failed, %d session(s)",
		len(t.history.ProcessedDates), len(t.history.FailedDates), len(t.history.Sessions))
	if !t.history.LastSuccessful.IsZero() {
		log.Printf("Last successful date: %s", t.history.LastSuccessful)
	}
	if len(t.history.FailedDates) > 0 {
		log.Printf("Failed dates: %v", t.history.FailedDates)
	}
}

func (t *Tracker) save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	data, err := json.MarshalIndent(t.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode processing history: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write processing history: %w", err)
	}
	return nil
}

// mergeDates returns base plus add minus remove, sorted and deduplicated.
func mergeDates(base, add, remove []date.Date) []date.Date {
	set := make(map[date.Date]bool, len(base)+len(add))
	for _, d := range base {
		set[d] = true
	}
	for _, d := range add {
		set[d] = true
	}
	for _, d := range remove {
		delete(set, d)
	}

	out := make([]date.Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
