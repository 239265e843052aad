package gtfs

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rickb777/date"
)

// DateLayout is the folder/file naming convention for snapshot dates,
// matching the GTFS date format.
const DateLayout = "20060102"

var (
	// ErrMissingInput marks a required snapshot stream (or the whole
	// snapshot) as absent. Fatal for the affected date only.
	ErrMissingInput = errors.New("required snapshot input missing")

	// ErrSchemaMismatch marks a required column as absent from a
	// snapshot file. Fatal for the affected date only.
	ErrSchemaMismatch = errors.New("required column missing")
)

// Source reads dated GTFS snapshots from a raw data directory. Each
// snapshot is either a subdirectory or a zip file named YYYYMMDD.
type Source struct {
	RawDir string
}

// NewSource creates a snapshot source over the given raw data directory.
func NewSource(rawDir string) *Source {
	return &Source{RawDir: rawDir}
}

// AvailableDates lists the snapshot dates present in the raw directory,
// sorted ascending. Entries that do not parse as YYYYMMDD are skipped.
func (s *Source) AvailableDates() ([]date.Date, error) {
	entries, err := os.ReadDir(s.RawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw data directory: %w", err)
	}

	var dates []date.Date
	seen := make(map[date.Date]bool)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			if !strings.HasSuffix(name, ".zip") {
				continue
			}
			name = strings.TrimSuffix(name, ".zip")
		}
		d, err := date.Parse(DateLayout, name)
		if err != nil {
			// Not a snapshot entry, e.g. a scratch folder.
			continue
		}
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// Load reads the snapshot for one date. calendar.txt may be absent (the
// rule set is then empty); every other file is required.
func (s *Source) Load(day date.Date) (*Snapshot, error) {
	open, closeAll, err := s.opener(day)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	snap := &Snapshot{
		Date:   day,
		Shapes: make(map[string][]ShapePoint),
	}

	if err := s.parseRequired(open, "routes.txt", func(r io.Reader) (perr error) {
		snap.Routes, perr = parseRoutes(r)
		return perr
	}); err != nil {
		return nil, err
	}

	if err := s.parseRequired(open, "trips.txt", func(r io.Reader) (perr error) {
		snap.Trips, perr = parseTrips(r)
		return perr
	}); err != nil {
		return nil, err
	}

	if err := s.parseRequired(open, "shapes.txt", func(r io.Reader) (perr error) {
		snap.Shapes, perr = parseShapes(r)
		return perr
	}); err != nil {
		return nil, err
	}

	if err := s.parseRequired(open, "calendar_dates.txt", func(r io.Reader) (perr error) {
		snap.CalendarDates, perr = parseCalendarDates(r)
		return perr
	}); err != nil {
		return nil, err
	}

	rc, ok, err := open("calendar.txt")
	if err != nil {
		return nil, err
	}
	if ok {
		snap.Calendar, err = parseCalendar(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("calendar.txt: %w", err)
		}
		snap.HasCalendar = true
	} else {
		log.Printf("Warning: calendar.txt not found for %s, using empty rule set", day)
	}

	log.Printf("Snapshot %s parsed: %d routes, %d trips, %d shapes, %d calendar rules, %d exceptions",
		day, len(snap.Routes), len(snap.Trips), len(snap.Shapes), len(snap.Calendar), len(snap.CalendarDates))

	return snap, nil
}

func (s *Source) parseRequired(open openFunc, name string, parse func(io.Reader) error) error {
	rc, ok, err := open(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrMissingInput)
	}
	defer rc.Close()
	if err := parse(rc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// openFunc opens one named file inside a snapshot. The boolean is false
// when the file does not exist.
type openFunc func(name string) (io.ReadCloser, bool, error)

// opener resolves the snapshot layout for a date: a directory of .txt
// files, or a zip archive with the same contents.
func (s *Source) opener(day date.Date) (openFunc, func(), error) {
	dirPath := filepath.Join(s.RawDir, day.Format(DateLayout))
	if info, err := os.Stat(dirPath); err == nil && info.IsDir() {
		open := func(name string) (io.ReadCloser, bool, error) {
			f, err := os.Open(filepath.Join(dirPath, name))
			if os.IsNotExist(err) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return f, true, nil
		}
		return open, func() {}, nil
	}

	zipPath := dirPath + ".zip"
	r, err := zip.OpenReader(zipPath)
	if os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("snapshot %s: %w", day, ErrMissingInput)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zip %s: %w", zipPath, err)
	}

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	open := func(name string) (io.ReadCloser, bool, error) {
		f, ok := files[name]
		if !ok {
			return nil, false, nil
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, err
		}
		return rc, true, nil
	}
	return open, func() { r.Close() }, nil
}
