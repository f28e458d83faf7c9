package chamber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/verdelab/growchamber/internal/model"
	"github.com/verdelab/growchamber/pkg/broker"
)

// PumpService pulses the pump on a long period (default 24 h) and keeps that
// period across restarts by recovering the next due time from the persisted
// start history rather than process uptime.
type PumpService struct {
	line      Line
	history   PumpHistory
	publisher broker.IPublisher // optional

	period time.Duration
	pulse  time.Duration

	now func() time.Time
}

func NewPumpService(line Line, history PumpHistory, publisher broker.IPublisher, period, pulse time.Duration) (*PumpService, error) {
	if period <= 0 || pulse <= 0 {
		return nil, fmt.Errorf("pump: period and pulse must be positive, got %s/%s", period, pulse)
	}
	if pulse > period {
		return nil, fmt.Errorf("pump: pulse %s longer than period %s", pulse, period)
	}
	return &PumpService{
		line:      line,
		history:   history,
		publisher: publisher,
		period:    period,
		pulse:     pulse,
		now:       time.Now,
	}, nil
}

// NextDue computes when the pump may fire next. With a recorded start T the
// answer is exactly T + period. An empty history means fire immediately: a
// fixed fallback date behaves the same at first boot but can starve the pump
// if the period is ever reconfigured, so "now" is the documented default. An
// unreadable history is treated as empty, never as fatal. A next-due already
// in the past fires at the next opportunity; missed periods are not replayed.
func (s *PumpService) NextDue(now time.Time) time.Time {
	last, ok, err := s.history.MostRecentStart()
	if err != nil {
		log.Printf("pump: history unreadable, treating as empty: %v", err)
		return now
	}
	if !ok {
		return now
	}
	return last.Add(s.period)
}

// Start waits until the recovered due time, runs, and repeats until ctx is
// cancelled.
func (s *PumpService) Start(ctx context.Context) {
	// In-memory floor on the next run: if the history append failed, the
	// persisted record is missing and NextDue alone would re-fire instantly.
	var lastRun time.Time
	for {
		now := s.now()
		due := s.NextDue(now)
		if !lastRun.IsZero() {
			if floor := lastRun.Add(s.period); floor.After(due) {
				due = floor
			}
		}
		if wait := due.Sub(now); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		lastRun = s.Run(ctx)
	}
}

// Run appends the start record first (intent to run, not completion: a crash
// mid-pulse must still consume the period, or a restart would double-fire),
// then pulses the line.
func (s *PumpService) Run(ctx context.Context) time.Time {
	started := s.now()
	if err := s.history.AppendStart(started); err != nil {
		log.Printf("pump: history append failed: %v", err)
	}

	s.line.SetHigh()
	if err := sleep(ctx, s.pulse); err != nil {
		log.Printf("pump: pulse interrupted: %v", err)
	}
	s.line.SetLow()

	pumpRuns.Inc()
	s.publishRun(started)
	log.Printf("pump: ran for %s (started %s)", s.pulse, started.Format(time.RFC3339))
	return started
}

func (s *PumpService) publishRun(started time.Time) {
	if s.publisher == nil {
		return
	}
	evt := model.PumpRunEvent{
		TicketID:  uuid.New().String(),
		StartedAt: started.UTC(),
		Duration:  s.pulse,
		Timestamp: s.now().UTC(),
	}
	b, _ := json.Marshal(evt)
	// QoS 1: pump runs are rare and the mirror must not miss them. The
	// recorder dedups redeliveries by payload hash.
	if err := s.publisher.PublishQos(1, false, string(b)); err != nil {
		log.Printf("pump: publish failed: %v", err)
	}
}
