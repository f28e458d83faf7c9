// Package storage holds the append-only audit stores: the climate CSV log and
// the pump-start history the scheduler recovers from after a restart.
package storage

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	climateHeader = "Timestamp(Local),Temperature(degC),Humidity(%)"
	timeLayout    = "2006-01-02 15:04:05"
)

// ClimateLog appends one CSV row per successful climate cycle. Entries are
// never mutated or deleted. Appends are serialized; the file is opened per
// append so an external rotate does not wedge the daemon.
type ClimateLog struct {
	mu   sync.Mutex
	path string
}

func NewClimateLog(path string) *ClimateLog {
	return &ClimateLog{path: path}
}

// Append writes one reading row, writing the header first if the file is new
// or empty.
func (l *ClimateLog) Append(ts time.Time, temperature, humidity float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("climate log: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("climate log: %w", err)
	}

	var b strings.Builder
	if st.Size() == 0 {
		b.WriteString(climateHeader)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s, %.2f, %.2f\n", ts.Format(timeLayout), temperature, humidity)

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("climate log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("climate log: %w", err)
	}
	return nil
}
