package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickb777/date"
)

func day(y int, m time.Month, d int) date.Date {
	return date.New(y, m, d)
}

func ledgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "processing_history.json")
}

func TestOpen_MissingFileStartsFresh(t *testing.T) {
	tr := Open(ledgerPath(t))
	if tr.Processed(day(2013, time.October, 18)) {
		t.Error("fresh ledger must not report any date as processed")
	}
}

func TestRecordSession_Persistence(t *testing.T) {
	path := ledgerPath(t)
	oct18 := day(2013, time.October, 18)
	oct25 := day(2013, time.October, 25)

	tr := Open(path)
	err := tr.RecordSession(oct18, oct25, []date.Date{oct18}, []date.Date{oct25})
	if err != nil {
		t.Fatalf("RecordSession failed: %v", err)
	}

	// Reopen from disk.
	reopened := Open(path)
	if !reopened.Processed(oct18) {
		t.Error("successful date lost across reopen")
	}
	if reopened.Processed(oct25) {
		t.Error("failed date must not count as processed")
	}
	if len(reopened.history.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(reopened.history.Sessions))
	}
	if reopened.history.Sessions[0].SessionID == "" {
		t.Error("session must carry an id")
	}
}

func TestRecordSession_LaterSuccessClearsFailure(t *testing.T) {
	path := ledgerPath(t)
	oct18 := day(2013, time.October, 18)

	tr := Open(path)
	if err := tr.RecordSession(oct18, oct18, nil, []date.Date{oct18}); err != nil {
		t.Fatal(err)
	}
	if err := tr.RecordSession(oct18, oct18, []date.Date{oct18}, nil); err != nil {
		t.Fatal(err)
	}

	if len(tr.history.FailedDates) != 0 {
		t.Errorf("failed set should be empty, got %v", tr.history.FailedDates)
	}
	if !tr.Processed(oct18) {
		t.Error("date must be processed after the retry")
	}
}

func TestDatesToProcess_ResumesAfterLastProcessed(t *testing.T) {
	path := ledgerPath(t)
	oct18 := day(2013, time.October, 18)
	oct25 := day(2013, time.October, 25)
	nov1 := day(2013, time.November, 1)
	available := []date.Date{oct18, oct25, nov1}

	tr := Open(path)
	if err := tr.MarkProcessed(oct25); err != nil {
		t.Fatal(err)
	}

	todo := tr.DatesToProcess(oct18, nov1, available)
	if len(todo) != 1 || !todo[0].Equal(nov1) {
		t.Fatalf("expected only %s to remain, got %v", nov1, todo)
	}
}

func TestDatesToProcess_FreshLedgerKeepsWholeRange(t *testing.T) {
	oct18 := day(2013, time.October, 18)
	nov1 := day(2013, time.November, 1)
	available := []date.Date{oct18, nov1, day(2013, time.December, 1)}

	tr := Open(ledgerPath(t))
	todo := tr.DatesToProcess(oct18, nov1, available)
	if len(todo) != 2 {
		t.Fatalf("expected the 2 in-range dates, got %v", todo)
	}
}

func TestLastProcessed_IgnoresUnavailableDates(t *testing.T) {
	tr := Open(ledgerPath(t))
	oct18 := day(2013, time.October, 18)
	nov1 := day(2013, time.November, 1)
	if err := tr.MarkProcessed(oct18); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkProcessed(nov1); err != nil {
		t.Fatal(err)
	}

	// nov1 was processed but its snapshot has since been removed.
	last, found := tr.LastProcessed([]date.Date{oct18})
	if !found || !last.Equal(oct18) {
		t.Errorf("expected %s, got %s (found=%v)", oct18, last, found)
	}
}

func TestReset(t *testing.T) {
	path := ledgerPath(t)
	oct18 := day(2013, time.October, 18)

	tr := Open(path)
	if err := tr.MarkProcessed(oct18); err != nil {
		t.Fatal(err)
	}
	if err := tr.Reset(); err != nil {
		t.Fatal(err)
	}

	if Open(path).Processed(oct18) {
		t.Error("reset ledger must forget processed dates")
	}
}

func TestOpen_CorruptFileStartsFresh(t *testing.T) {
	path := ledgerPath(t)
	tr := Open(path)
	if err := tr.MarkProcessed(day(2013, time.October, 18)); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if Open(path).Processed(day(2013, time.October, 18)) {
		t.Error("corrupt ledger must start fresh")
	}
}
