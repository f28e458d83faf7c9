// Package sht20 drives a Sensirion SHT20 temperature/humidity sensor in
// no-hold-master mode: the device never stalls the bus during conversion, so
// the caller triggers a measurement, waits out a fixed settling delay and then
// reads the result back. The driver keeps an explicit measurement state and
// rejects a second trigger while one is in flight; the device has no queue.
package sht20

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Command bytes from the SHT20 datasheet, table 6. Hold-master variants are
// listed for completeness; this driver only issues the no-hold ones.
const (
	cmdTriggerTempHold   = 0xE3
	cmdTriggerTempNoHold = 0xF3
	cmdTriggerRHHold     = 0xE5
	cmdTriggerRHNoHold   = 0xF5
	cmdWriteUserReg      = 0xE6
	cmdReadUserReg       = 0xE7
	cmdSoftReset         = 0xFE
)

const (
	// statusMask covers the low two bits of a raw sample. They tag the
	// measurement type (00 = temperature, else humidity) and are not part of
	// the physical value.
	statusMask = 0x0003

	// DefaultSettleDelay must be at least the worst-case conversion time for
	// the selected resolution (14-bit temperature: 85 ms per datasheet §2.3).
	DefaultSettleDelay = 85 * time.Millisecond

	// resetDelay is the soft-reset power-up time (datasheet §5.5, <15 ms).
	resetDelay = 15 * time.Millisecond
)

var (
	// ErrMeasurementInProgress is returned by a trigger while another
	// measurement is in flight. It indicates a caller-ordering bug.
	ErrMeasurementInProgress = errors.New("sht20: measurement already in progress")

	// ErrUnexpectedByteCount is returned when the bus delivers a result frame
	// of the wrong length.
	ErrUnexpectedByteCount = errors.New("sht20: unexpected byte count")
)

// State is the driver's measurement state. At most one measurement is in
// flight at any time.
type State int

const (
	StateIdle State = iota
	StateMeasuringTemperature
	StateMeasuringHumidity
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMeasuringTemperature:
		return "measuring-temperature"
	case StateMeasuringHumidity:
		return "measuring-humidity"
	default:
		return "<unknown>"
	}
}

// Kind classifies a reading. The classification comes from the sample's own
// status bits, not from which trigger the caller issued.
type Kind int

const (
	Temperature Kind = iota
	Humidity
)

func (k Kind) String() string {
	if k == Temperature {
		return "temperature"
	}
	return "humidity"
}

// Reading is one calibrated sample. The driver does not retain it.
type Reading struct {
	Kind  Kind
	Value float32
}

// Bus is the byte-level transport to the sensor, address already selected.
type Bus interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// Device is an SHT20 on an I²C bus. Safe for concurrent use: the mutex
// serializes bus access and guards the measurement state, so concurrent
// callers see ErrMeasurementInProgress rather than interleaved bus traffic.
type Device struct {
	mu     sync.Mutex
	bus    Bus
	state  State
	settle time.Duration
}

// New wraps an opened bus. A settle of 0 selects DefaultSettleDelay.
func New(bus Bus, settle time.Duration) *Device {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Device{bus: bus, settle: settle}
}

// Reset issues a soft reset and waits for the sensor to come back up.
// Any in-flight measurement is discarded.
func (d *Device) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeCmd(cmdSoftReset); err != nil {
		return err
	}
	d.state = StateIdle
	return sleep(ctx, resetDelay)
}

// UserRegister reads the user register (resolution bits, end-of-battery flag).
// Useful for a one-time sanity log at startup.
func (d *Device) UserRegister() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateIdle {
		return 0, ErrMeasurementInProgress
	}
	if err := d.writeCmd(cmdReadUserReg); err != nil {
		return 0, err
	}
	var buf [1]byte
	n, err := d.bus.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("sht20: read user register: %w", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("sht20: read user register: %w: got %d bytes, want 1", ErrUnexpectedByteCount, n)
	}
	return buf[0], nil
}

// TriggerTemperature starts a temperature conversion. The result is available
// after the settling delay via ReadMeasurement.
func (d *Device) TriggerTemperature() error {
	return d.trigger(cmdTriggerTempNoHold, StateMeasuringTemperature)
}

// TriggerHumidity starts a humidity conversion.
func (d *Device) TriggerHumidity() error {
	return d.trigger(cmdTriggerRHNoHold, StateMeasuringHumidity)
}

func (d *Device) trigger(cmd byte, next State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateIdle {
		return ErrMeasurementInProgress
	}
	if err := d.writeCmd(cmd); err != nil {
		return err
	}
	d.state = next
	return nil
}

func (d *Device) writeCmd(cmd byte) error {
	n, err := d.bus.Write([]byte{cmd})
	if err != nil {
		return fmt.Errorf("sht20: write command %#02x: %w", cmd, err)
	}
	if n != 1 {
		return fmt.Errorf("sht20: write command %#02x: short write (%d of 1 bytes)", cmd, n)
	}
	return nil
}

// ReadMeasurement reads back the pending conversion. The low two status bits
// of the raw value decide whether it is a temperature or a humidity sample;
// the hardware's tag wins over whatever the caller triggered. State returns
// to idle no matter how the read goes.
func (d *Device) ReadMeasurement() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() { d.state = StateIdle }()

	var buf [2]byte
	n, err := d.bus.Read(buf[:])
	if err != nil {
		return Reading{}, fmt.Errorf("sht20: read measurement: %w", err)
	}
	if n != len(buf) {
		return Reading{}, fmt.Errorf("sht20: read measurement: %w: got %d bytes, want 2", ErrUnexpectedByteCount, n)
	}

	raw := uint16(buf[0])<<8 | uint16(buf[1])
	masked := raw &^ statusMask
	if raw&statusMask == 0 {
		return Reading{Kind: Temperature, Value: convertTemperature(masked)}, nil
	}
	return Reading{Kind: Humidity, Value: convertHumidity(masked)}, nil
}

// Status reports the current measurement state.
func (d *Device) Status() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Temperature triggers a temperature conversion, waits out the settling delay
// and reads the result. The wait is a plain suspend: the device gives no
// ready signal in no-hold mode.
func (d *Device) Temperature(ctx context.Context) (float32, error) {
	return d.measure(ctx, d.TriggerTemperature, Temperature)
}

// Humidity triggers a humidity conversion, waits and reads the result.
func (d *Device) Humidity(ctx context.Context) (float32, error) {
	return d.measure(ctx, d.TriggerHumidity, Humidity)
}

func (d *Device) measure(ctx context.Context, trigger func() error, want Kind) (float32, error) {
	if err := trigger(); err != nil {
		return 0, err
	}
	if err := sleep(ctx, d.settle); err != nil {
		// Cancelled mid-settle. The conversion finishes on its own; drop it
		// so the next trigger is not wedged.
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		return 0, err
	}
	r, err := d.ReadMeasurement()
	if err != nil {
		return 0, err
	}
	if r.Kind != want {
		return 0, fmt.Errorf("sht20: device returned a %s sample, want %s", r.Kind, want)
	}
	return r.Value, nil
}

// convertTemperature applies the datasheet transfer function (§6.2):
// T[°C] = -46.85 + 175.72 * S_T / 2^16. raw must have the status bits cleared.
func convertTemperature(raw uint16) float32 {
	return -46.85 + 175.72*float32(raw)/65536.0
}

// convertHumidity applies the datasheet transfer function (§6.1):
// RH[%] = -6 + 125 * S_RH / 2^16. raw must have the status bits cleared.
func convertHumidity(raw uint16) float32 {
	return -6.0 + 125.0*float32(raw)/65536.0
}

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
