package entities

// ActuatorState indicates whether an actuator line is driven high or low.
type ActuatorState string

const (
	StateOff ActuatorState = "off"
	StateOn  ActuatorState = "on"
)
