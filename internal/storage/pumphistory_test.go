package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPumpHistoryEmpty(t *testing.T) {
	h := NewPumpHistory(filepath.Join(t.TempDir(), "pump.log"))
	_, ok, err := h.MostRecentStart()
	if err != nil {
		t.Fatalf("most recent on missing file: %v", err)
	}
	if ok {
		t.Fatal("missing file reported an entry")
	}
}

func TestPumpHistoryAppendAndQuery(t *testing.T) {
	h := NewPumpHistory(filepath.Join(t.TempDir(), "pump.log"))
	base := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		ts := base.Add(time.Duration(i) * 24 * time.Hour)
		if err := h.AppendStart(ts); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		got, ok, err := h.MostRecentStart()
		if err != nil || !ok {
			t.Fatalf("query after append %d: ok=%v err=%v", i, ok, err)
		}
		if !got.Equal(ts) {
			t.Errorf("after append %d: most recent = %v, want %v", i, got, ts)
		}
	}
}

func TestPumpHistorySkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pump.log")
	want := time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)
	content := "garbage\n\n" + want.Format(time.RFC3339) + "\nnot-a-timestamp\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	h := NewPumpHistory(path)
	got, ok, err := h.MostRecentStart()
	if err != nil || !ok {
		t.Fatalf("query: ok=%v err=%v", ok, err)
	}
	if !got.Equal(want) {
		t.Errorf("most recent = %v, want %v", got, want)
	}
}

func TestPumpHistoryKeepsMaximum(t *testing.T) {
	// An operator-edited file may be out of order; the query must still return
	// the latest start by time.
	path := filepath.Join(t.TempDir(), "pump.log")
	h := NewPumpHistory(path)
	late := time.Date(2026, 5, 3, 6, 0, 0, 0, time.UTC)
	early := late.Add(-48 * time.Hour)
	if err := h.AppendStart(late); err != nil {
		t.Fatal(err)
	}
	if err := h.AppendStart(early); err != nil {
		t.Fatal(err)
	}
	got, ok, err := h.MostRecentStart()
	if err != nil || !ok {
		t.Fatalf("query: ok=%v err=%v", ok, err)
	}
	if !got.Equal(late) {
		t.Errorf("most recent = %v, want %v", got, late)
	}
}
