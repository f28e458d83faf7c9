// Package hw holds the hardware boundary of the chamber daemon: the byte-level
// sensor bus and the digital actuator lines. The real implementations bind to
// periph.io; tests substitute fakes.
package hw

// Bus is the bidirectional transport to the sensor. The device address is
// selected once when the bus is opened.
type Bus interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// Line is a single digital output owned by exactly one service. Writes are
// fire-and-forget; a digital output has no failure mode at this layer.
type Line interface {
	SetHigh()
	SetLow()
	IsHigh() bool
}
