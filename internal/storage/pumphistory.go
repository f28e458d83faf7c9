package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

// PumpHistory is the persisted record of pump starts, one RFC3339 timestamp
// per line, append-only. The most recent entry alone decides when the pump is
// next due, which is what makes the at-most-once-per-period guarantee survive
// restarts.
type PumpHistory struct {
	mu   sync.Mutex
	path string
}

func NewPumpHistory(path string) *PumpHistory {
	return &PumpHistory{path: path}
}

// AppendStart records the start of a pump run. Called before the pulse, so a
// crash mid-pulse still counts the period as consumed.
func (h *PumpHistory) AppendStart(ts time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("pump history: %w", err)
	}
	if _, err := fmt.Fprintln(f, ts.Format(time.RFC3339)); err != nil {
		f.Close()
		return fmt.Errorf("pump history: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pump history: %w", err)
	}
	return nil
}

// MostRecentStart returns the latest recorded start. The second return is
// false when no entry exists. The scan keeps the maximum timestamp rather
// than the last line, so a wall-clock step backwards cannot shorten the
// period. Malformed lines are skipped.
func (h *PumpHistory) MostRecentStart() (time.Time, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("pump history: %w", err)
	}
	defer f.Close()

	var (
		latest time.Time
		found  bool
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, line)
		if err != nil {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("pump history: %w", err)
	}
	return latest, found, nil
}
