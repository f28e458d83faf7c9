package chamber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/verdelab/growchamber/internal/model"
	"github.com/verdelab/growchamber/pkg/broker"
)

// ClimateService samples the sensor on a fixed period and drives the
// humidifier with a two-threshold band: below Low the line goes high, above
// High it goes low, inside [Low, High] it is left alone. The dead band is
// what keeps the humidifier from chattering around a single threshold.
type ClimateService struct {
	driver     Driver
	humidifier Line
	climateLog ClimateLog
	publisher  broker.IPublisher // optional; nil disables telemetry

	period time.Duration
	lo, hi float32

	now func() time.Time
}

func NewClimateService(driver Driver, humidifier Line, climateLog ClimateLog, publisher broker.IPublisher, period time.Duration, lo, hi float32) (*ClimateService, error) {
	if lo >= hi {
		return nil, fmt.Errorf("climate: humidity thresholds must satisfy low < high, got %.1f/%.1f", lo, hi)
	}
	if period <= 0 {
		return nil, fmt.Errorf("climate: period must be positive, got %s", period)
	}
	return &ClimateService{
		driver:     driver,
		humidifier: humidifier,
		climateLog: climateLog,
		publisher:  publisher,
		period:     period,
		lo:         lo,
		hi:         hi,
		now:        time.Now,
	}, nil
}

// Start runs one cycle immediately, then one per period until ctx is
// cancelled. A failed cycle is reported and skipped; there is no catch-up.
func (s *ClimateService) Start(ctx context.Context) {
	tick := time.NewTicker(s.period)
	defer tick.Stop()
	for {
		s.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// RunCycle takes one temperature and one humidity reading back-to-back (so a
// logged pair always comes from the same cycle), applies the hysteresis band
// and appends one audit row. If either reading fails the cycle aborts without
// touching the line or the log.
func (s *ClimateService) RunCycle(ctx context.Context) {
	temperature, err := s.driver.Temperature(ctx)
	if err != nil {
		climateCycleErrors.Inc()
		log.Printf("climate: temperature read failed, skipping cycle: %v", err)
		return
	}
	humidity, err := s.driver.Humidity(ctx)
	if err != nil {
		climateCycleErrors.Inc()
		log.Printf("climate: humidity read failed, skipping cycle: %v", err)
		return
	}

	// Clamp before both the decision and the log: the audit trail must show
	// the value the controller acted on.
	humidity = clampPct(humidity)

	switch {
	case humidity < s.lo:
		s.humidifier.SetHigh()
	case humidity > s.hi:
		s.humidifier.SetLow()
	}
	on := s.humidifier.IsHigh()

	temperatureGauge.Set(float64(temperature))
	humidityGauge.Set(float64(humidity))
	if on {
		humidifierGauge.Set(1)
	} else {
		humidifierGauge.Set(0)
	}

	ts := s.now()
	if err := s.climateLog.Append(ts, temperature, humidity); err != nil {
		// Non-fatal: only this cycle's record is lost.
		log.Printf("climate: log append failed: %v", err)
	}
	s.publish(ts, temperature, humidity, on)

	log.Printf("climate: %.2f degC %.2f %%RH humidifier=%v", temperature, humidity, on)
}

func (s *ClimateService) publish(ts time.Time, temperature, humidity float32, on bool) {
	if s.publisher == nil {
		return
	}
	state := model.StateOff
	if on {
		state = model.StateOn
	}
	evt := model.ClimateEvent{
		Temperature: temperature,
		Humidity:    humidity,
		Humidifier:  state,
		Timestamp:   ts.UTC(),
	}
	b, _ := json.Marshal(evt)
	if err := s.publisher.PublishMessage(string(b)); err != nil {
		log.Printf("climate: publish failed: %v", err)
	}
}

func clampPct(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
