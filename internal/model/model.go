package model

import (
	"github.com/verdelab/growchamber/internal/model/entities"
	"github.com/verdelab/growchamber/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	ClimateEvent  = messages.ClimateEvent
	PumpRunEvent  = messages.PumpRunEvent
	ActuatorState = entities.ActuatorState
)

const (
	StateOn  = entities.StateOn
	StateOff = entities.StateOff
)
