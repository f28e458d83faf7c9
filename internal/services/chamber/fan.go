package chamber

import (
	"context"
	"fmt"
	"log"
	"time"
)

// FanService pulses the fan for a fixed duration once per period, independent
// of sensor values. The pulse blocks inside the tick handler, so two pulses
// can never overlap.
type FanService struct {
	line   Line
	period time.Duration
	pulse  time.Duration
}

func NewFanService(line Line, period, pulse time.Duration) (*FanService, error) {
	if period <= 0 || pulse <= 0 {
		return nil, fmt.Errorf("fan: period and pulse must be positive, got %s/%s", period, pulse)
	}
	if pulse > period {
		return nil, fmt.Errorf("fan: pulse %s longer than period %s", pulse, period)
	}
	return &FanService{line: line, period: period, pulse: pulse}, nil
}

// Start pulses once immediately, then once per period until ctx is cancelled.
func (s *FanService) Start(ctx context.Context) {
	tick := time.NewTicker(s.period)
	defer tick.Stop()
	for {
		s.Pulse(ctx)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Pulse drives the line high, waits out the pulse duration and drives it low
// again. On shutdown the wait is cut short but the line still goes low.
func (s *FanService) Pulse(ctx context.Context) {
	s.line.SetHigh()
	if err := sleep(ctx, s.pulse); err != nil {
		log.Printf("fan: pulse interrupted: %v", err)
	}
	s.line.SetLow()
}
