package chamber

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHistory struct {
	starts    []time.Time
	appendErr error
	readErr   error
}

func (h *fakeHistory) AppendStart(ts time.Time) error {
	if h.appendErr != nil {
		return h.appendErr
	}
	h.starts = append(h.starts, ts)
	return nil
}

func (h *fakeHistory) MostRecentStart() (time.Time, bool, error) {
	if h.readErr != nil {
		return time.Time{}, false, h.readErr
	}
	if len(h.starts) == 0 {
		return time.Time{}, false, nil
	}
	latest := h.starts[0]
	for _, ts := range h.starts[1:] {
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest, true, nil
}

func newPump(t *testing.T, line Line, history PumpHistory, period, pulse time.Duration) *PumpService {
	t.Helper()
	s, err := NewPumpService(line, history, nil, period, pulse)
	if err != nil {
		t.Fatalf("NewPumpService: %v", err)
	}
	return s
}

func TestNextDueFromHistory(t *testing.T) {
	last := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)
	h := &fakeHistory{starts: []time.Time{last}}
	s := newPump(t, &fakeLine{}, h, 24*time.Hour, time.Second)
	got := s.NextDue(last.Add(3 * time.Hour))
	if want := last.Add(24 * time.Hour); !got.Equal(want) {
		t.Errorf("NextDue = %v, want %v", got, want)
	}
}

func TestNextDueEmptyHistoryFiresImmediately(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newPump(t, &fakeLine{}, &fakeHistory{}, 24*time.Hour, time.Second)
	if got := s.NextDue(now); !got.Equal(now) {
		t.Errorf("NextDue on empty history = %v, want now (%v)", got, now)
	}
}

func TestNextDueUnreadableHistoryTreatedAsEmpty(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h := &fakeHistory{readErr: errors.New("corrupt file")}
	s := newPump(t, &fakeLine{}, h, 24*time.Hour, time.Second)
	if got := s.NextDue(now); !got.Equal(now) {
		t.Errorf("NextDue on unreadable history = %v, want now (%v)", got, now)
	}
}

func TestRecoveryRoundTrip(t *testing.T) {
	// Appending N start records and recovering after each append yields
	// next-due timestamps increasing by exactly one period.
	const period = 24 * time.Hour
	h := &fakeHistory{}
	s := newPump(t, &fakeLine{}, h, period, time.Second)
	base := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)
	var prev time.Time
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * period)
		if err := h.AppendStart(start); err != nil {
			t.Fatal(err)
		}
		due := s.NextDue(start)
		if want := start.Add(period); !due.Equal(want) {
			t.Fatalf("after append %d: NextDue = %v, want %v", i, due, want)
		}
		if i > 0 && due.Sub(prev) != period {
			t.Fatalf("after append %d: due advanced by %v, want %v", i, due.Sub(prev), period)
		}
		prev = due
	}
}

func TestRunRecordsIntentBeforePulsing(t *testing.T) {
	h := &fakeHistory{}
	line := &orderLine{history: h}
	s := newPump(t, line, h, time.Hour, time.Millisecond)
	s.Run(context.Background())
	if !line.recordedAtHigh {
		t.Error("pump line raised before the start record was persisted")
	}
	if !line.wentHigh || line.high {
		t.Errorf("pulse incomplete: wentHigh=%v high=%v", line.wentHigh, line.high)
	}
	if len(h.starts) != 1 {
		t.Fatalf("history has %d entries, want 1", len(h.starts))
	}
}

// orderLine checks the append-before-pulse ordering.
type orderLine struct {
	history        *fakeHistory
	high           bool
	wentHigh       bool
	recordedAtHigh bool
}

func (l *orderLine) SetHigh() {
	l.high = true
	l.wentHigh = true
	l.recordedAtHigh = len(l.history.starts) > 0
}
func (l *orderLine) SetLow()      { l.high = false }
func (l *orderLine) IsHigh() bool { return l.high }

func TestRunSurvivesAppendFailure(t *testing.T) {
	h := &fakeHistory{appendErr: errors.New("disk full")}
	line := &fakeLine{}
	s := newPump(t, line, h, time.Hour, time.Millisecond)
	s.Run(context.Background())
	if !line.wasPulsed() {
		t.Error("pulse skipped because the history append failed")
	}
}

func (l *fakeLine) wasPulsed() bool { return l.transitions >= 2 && !l.high }

func TestPumpValidation(t *testing.T) {
	if _, err := NewPumpService(&fakeLine{}, &fakeHistory{}, nil, time.Second, time.Minute); err == nil {
		t.Error("pulse longer than period accepted")
	}
	if _, err := NewPumpService(&fakeLine{}, &fakeHistory{}, nil, 0, time.Second); err == nil {
		t.Error("zero period accepted")
	}
}
