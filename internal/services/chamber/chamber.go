// Package chamber holds the three periodic control services of the grow
// chamber: the climate cycle (sensor sampling + humidifier hysteresis), the
// fan pulser and the pump service with its schedule recovery. Each runs as an
// independent goroutine; the sensor driver serializes bus access itself and
// every actuator line has exactly one owning service.
package chamber

import (
	"context"
	"time"

	"github.com/verdelab/growchamber/internal/hw"
)

// Driver is the sensor sampled by the climate cycle. Implemented by
// *sht20.Device.
type Driver interface {
	Temperature(ctx context.Context) (float32, error)
	Humidity(ctx context.Context) (float32, error)
}

// ClimateLog is the audit sink for successful climate cycles.
type ClimateLog interface {
	Append(ts time.Time, temperature, humidity float32) error
}

// PumpHistory is the persisted record of pump starts used for schedule
// recovery.
type PumpHistory interface {
	AppendStart(ts time.Time) error
	MostRecentStart() (time.Time, bool, error)
}

// Line re-exported so fakes in other packages don't need internal/hw.
type Line = hw.Line

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
