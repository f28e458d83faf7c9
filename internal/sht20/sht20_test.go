package sht20

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// fakeBus scripts the transport: every Write is recorded, every Read pops the
// next queued frame. Short counts and errors are injectable.
type fakeBus struct {
	writes   [][]byte
	writeN   int // if >= 0, forced Write return count
	writeErr error
	reads    [][]byte
	readErr  error
}

func newFakeBus() *fakeBus { return &fakeBus{writeN: -1} }

func (b *fakeBus) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	b.writes = append(b.writes, cp)
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	if b.writeN >= 0 {
		return b.writeN, nil
	}
	return len(p), nil
}

func (b *fakeBus) Read(p []byte) (int, error) {
	if b.readErr != nil {
		return 0, b.readErr
	}
	if len(b.reads) == 0 {
		return 0, errors.New("fakeBus: no read scripted")
	}
	frame := b.reads[0]
	b.reads = b.reads[1:]
	n := copy(p, frame)
	return n, nil
}

func (b *fakeBus) queueRaw(raw uint16) {
	b.reads = append(b.reads, []byte{byte(raw >> 8), byte(raw)})
}

func TestConversionIgnoresStatusBits(t *testing.T) {
	// Masking the status bits out of any raw value must yield the same numeric
	// result regardless of which tag pattern the sample carried.
	for _, base := range []uint16{0x0000, 0x4000, 0x6A8C, 0x7FFC, 0xFFFC} {
		wantT := convertTemperature(base &^ statusMask)
		wantH := convertHumidity(base &^ statusMask)
		for status := uint16(1); status < 4; status++ {
			raw := base | status
			if got := convertTemperature(raw &^ statusMask); got != wantT {
				t.Fatalf("convertTemperature(%#04x&^status) = %v, want %v", raw, got, wantT)
			}
			if got := convertHumidity(raw &^ statusMask); got != wantH {
				t.Fatalf("convertHumidity(%#04x&^status) = %v, want %v", raw, got, wantH)
			}
		}
	}
}

func TestStatusBitClassification(t *testing.T) {
	tests := []struct {
		raw  uint16
		want Kind
	}{
		{0x0000, Temperature},
		{0x6A8C, Temperature}, // low bits 00
		{0x0001, Humidity},
		{0x0002, Humidity},
		{0x0003, Humidity},
		{0x4002, Humidity},
	}
	for _, tc := range tests {
		bus := newFakeBus()
		bus.queueRaw(tc.raw)
		d := New(bus, DefaultSettleDelay)
		if err := d.TriggerTemperature(); err != nil {
			t.Fatalf("trigger: %v", err)
		}
		r, err := d.ReadMeasurement()
		if err != nil {
			t.Fatalf("read raw=%#04x: %v", tc.raw, err)
		}
		if r.Kind != tc.want {
			t.Errorf("raw=%#04x classified %s, want %s", tc.raw, r.Kind, tc.want)
		}
	}
}

func TestHumidityExample(t *testing.T) {
	// Raw 0b0100000000000010: low bits 10 tag it humidity; masked value 16384
	// converts to -6 + 125*16384/65536 = 25.25.
	bus := newFakeBus()
	bus.queueRaw(0x4002)
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerHumidity(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	r, err := d.ReadMeasurement()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Kind != Humidity {
		t.Fatalf("classified %s, want humidity", r.Kind)
	}
	if math.Abs(float64(r.Value)-25.25) > 1e-4 {
		t.Errorf("converted to %.4f, want 25.25", r.Value)
	}
}

func TestTriggerCommands(t *testing.T) {
	bus := newFakeBus()
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerTemperature(); err != nil {
		t.Fatalf("trigger temperature: %v", err)
	}
	bus.queueRaw(0x0000)
	if _, err := d.ReadMeasurement(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := d.TriggerHumidity(); err != nil {
		t.Fatalf("trigger humidity: %v", err)
	}
	if len(bus.writes) != 2 || bus.writes[0][0] != cmdTriggerTempNoHold || bus.writes[1][0] != cmdTriggerRHNoHold {
		t.Errorf("command bytes = %v, want [0xF3] [0xF5]", bus.writes)
	}
}

func TestTriggerWhileMeasuring(t *testing.T) {
	bus := newFakeBus()
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerTemperature(); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := d.TriggerHumidity(); !errors.Is(err, ErrMeasurementInProgress) {
		t.Fatalf("second trigger = %v, want ErrMeasurementInProgress", err)
	}
	if err := d.TriggerTemperature(); !errors.Is(err, ErrMeasurementInProgress) {
		t.Fatalf("repeat trigger = %v, want ErrMeasurementInProgress", err)
	}
	if got := d.Status(); got != StateMeasuringTemperature {
		t.Errorf("state after rejected trigger = %v, want %v", got, StateMeasuringTemperature)
	}
	// Only the first trigger may have reached the bus.
	if len(bus.writes) != 1 {
		t.Errorf("bus saw %d writes, want 1", len(bus.writes))
	}
}

func TestReadAlwaysResetsState(t *testing.T) {
	// Success path.
	bus := newFakeBus()
	bus.queueRaw(0x0000)
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerTemperature(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := d.ReadMeasurement(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := d.Status(); got != StateIdle {
		t.Errorf("state after successful read = %v, want idle", got)
	}

	// Framing violation: a one-byte frame.
	bus = newFakeBus()
	bus.reads = [][]byte{{0x12}}
	d = New(bus, DefaultSettleDelay)
	if err := d.TriggerHumidity(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := d.ReadMeasurement(); !errors.Is(err, ErrUnexpectedByteCount) {
		t.Fatalf("short read = %v, want ErrUnexpectedByteCount", err)
	}
	if got := d.Status(); got != StateIdle {
		t.Errorf("state after protocol error = %v, want idle", got)
	}

	// Transport failure.
	bus = newFakeBus()
	bus.readErr = errors.New("i2c: remote I/O error")
	d = New(bus, DefaultSettleDelay)
	if err := d.TriggerHumidity(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := d.ReadMeasurement(); err == nil {
		t.Fatal("read over broken bus succeeded")
	}
	if got := d.Status(); got != StateIdle {
		t.Errorf("state after bus error = %v, want idle", got)
	}
}

func TestTriggerBusErrors(t *testing.T) {
	bus := newFakeBus()
	bus.writeErr = errors.New("i2c: remote I/O error")
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerTemperature(); err == nil {
		t.Fatal("trigger over broken bus succeeded")
	}
	if got := d.Status(); got != StateIdle {
		t.Errorf("state after failed trigger = %v, want idle", got)
	}

	bus = newFakeBus()
	bus.writeN = 0 // accepted the transaction but wrote nothing
	d = New(bus, DefaultSettleDelay)
	if err := d.TriggerHumidity(); err == nil {
		t.Fatal("short write accepted")
	}
	if got := d.Status(); got != StateIdle {
		t.Errorf("state after short write = %v, want idle", got)
	}
}

func TestTemperatureComposition(t *testing.T) {
	bus := newFakeBus()
	// 0x6A8C has low bits 00: temperature, -46.85+175.72*0x6A8C/65536 ≈ 26.17.
	bus.queueRaw(0x6A8C)
	d := New(bus, time.Millisecond)
	got, err := d.Temperature(context.Background())
	if err != nil {
		t.Fatalf("temperature: %v", err)
	}
	want := -46.85 + 175.72*float64(0x6A8C)/65536.0
	if math.Abs(float64(got)-want) > 1e-3 {
		t.Errorf("temperature = %.4f, want %.4f", got, want)
	}
	if d.Status() != StateIdle {
		t.Errorf("state after composition = %v, want idle", d.Status())
	}
}

func TestCompositionKindMismatch(t *testing.T) {
	bus := newFakeBus()
	bus.queueRaw(0x4002) // humidity-tagged sample
	d := New(bus, time.Millisecond)
	if _, err := d.Temperature(context.Background()); err == nil {
		t.Fatal("temperature accepted a humidity-tagged sample")
	}
	if d.Status() != StateIdle {
		t.Errorf("state after mismatch = %v, want idle", d.Status())
	}
}

func TestCancelDuringSettle(t *testing.T) {
	bus := newFakeBus()
	d := New(bus, 250*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Humidity(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled measure = %v, want context.Canceled", err)
	}
	// The driver must not stay wedged in a measuring state.
	if d.Status() != StateIdle {
		t.Errorf("state after cancel = %v, want idle", d.Status())
	}
}

func TestResetClearsInFlight(t *testing.T) {
	bus := newFakeBus()
	d := New(bus, DefaultSettleDelay)
	if err := d.TriggerTemperature(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := d.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d.Status() != StateIdle {
		t.Errorf("state after reset = %v, want idle", d.Status())
	}
	if last := bus.writes[len(bus.writes)-1][0]; last != cmdSoftReset {
		t.Errorf("last command = %#02x, want soft reset 0xFE", last)
	}
}
