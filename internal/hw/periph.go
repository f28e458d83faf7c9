package hw

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return fmt.Errorf("periph host init: %w", hostErr)
	}
	return nil
}

// OpenI2C opens the named I²C bus ("1", "/dev/i2c-1") and binds the device
// address, returning the bus handle and a close func for the underlying bus.
func OpenI2C(busName string, addr uint16) (Bus, func() error, error) {
	if err := initHost(); err != nil {
		return nil, nil, err
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return &i2cDev{dev: i2c.Dev{Bus: b, Addr: addr}}, b.Close, nil
}

type i2cDev struct {
	dev i2c.Dev
}

func (d *i2cDev) Write(p []byte) (int, error) {
	if err := d.dev.Tx(p, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *i2cDev) Read(p []byte) (int, error) {
	if err := d.dev.Tx(nil, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// OpenLine resolves a GPIO pin by name ("GPIO17") and configures it as an
// output driven low.
func OpenLine(name string) (Line, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no such gpio pin %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configure pin %q as output: %w", name, err)
	}
	return &pin{p: p}, nil
}

type pin struct {
	p gpio.PinIO
}

func (l *pin) SetHigh()     { _ = l.p.Out(gpio.High) }
func (l *pin) SetLow()      { _ = l.p.Out(gpio.Low) }
func (l *pin) IsHigh() bool { return l.p.Read() == gpio.High }
