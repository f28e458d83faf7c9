// Package telemetry mirrors the chamber's audit trail into InfluxDB. It
// consumes the MQTT events chamberd publishes and writes one point per event.
// The mirror is best-effort: the CSV stores on the device stay the source of
// truth for schedule recovery.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/verdelab/growchamber/internal/model"
	"github.com/verdelab/growchamber/pkg/dedup"
)

const writeTimeout = 5 * time.Second

// Service turns chamber events into Influx points. The circuit breaker stops
// the recorder from hammering a dead Influx; while it is open, events are
// dropped (the device-side CSV still has them).
type Service struct {
	writeAPI api.WriteAPIBlocking
	breaker  *gobreaker.CircuitBreaker
	filter   *dedup.Filter

	mu       sync.RWMutex
	lastErr  time.Time
	ingested map[string]int64
}

func NewService(writeAPI api.WriteAPIBlocking) *Service {
	return &Service{
		writeAPI: writeAPI,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "influx-write",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		filter:   dedup.New(10*time.Minute, 20000),
		lastErr:  time.Now().Add(-24 * time.Hour),
		ingested: make(map[string]int64),
	}
}

// HandleClimate records one climate cycle. Bad payloads are logged and
// dropped; they must not stall the stream.
func (s *Service) HandleClimate(topic string, msg mqtt.Message) error {
	var evt model.ClimateEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.Printf("telemetry: bad climate payload on %s: %v", topic, err)
		return nil
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPoint("chamber_climate",
		nil,
		map[string]interface{}{
			"temperature_c": float64(evt.Temperature),
			"humidity_pct":  float64(evt.Humidity),
			"humidifier_on": evt.Humidifier == model.StateOn,
		},
		ts)
	s.writePoint("climate", p)
	return nil
}

// HandlePumpRun records one pump activation. Pump events arrive at QoS 1, so
// redeliveries are dropped by payload hash before they reach Influx.
func (s *Service) HandlePumpRun(topic string, msg mqtt.Message) error {
	if !s.filter.ShouldProcess(msg.Payload()) {
		return nil
	}
	var evt model.PumpRunEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.Printf("telemetry: bad pump payload on %s: %v", topic, err)
		return nil
	}
	ts := evt.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPoint("chamber_pump_run",
		map[string]string{"ticket_id": evt.TicketID},
		map[string]interface{}{
			"duration_s": evt.Duration.Seconds(),
		},
		ts)
	s.writePoint("pump_run", p)
	return nil
}

func (s *Service) writePoint(kind string, p *write.Point) {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return nil, s.writeAPI.WritePoint(ctx, p)
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = time.Now()
		s.mu.Unlock()
		log.Printf("telemetry: influx write (%s): %v", kind, err)
		return
	}
	s.mu.Lock()
	s.ingested[kind]++
	s.mu.Unlock()
}

// LastErrorAge reports how long the write path has been healthy, for the
// health and readiness handlers.
func (s *Service) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}

// Ingested returns the number of points written for an event kind.
func (s *Service) Ingested(kind string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingested[kind]
}
