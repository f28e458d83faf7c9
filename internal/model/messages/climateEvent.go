package messages

import (
	"time"

	"github.com/verdelab/growchamber/internal/model/entities"
)

// ClimateEvent is published after every successful climate cycle, whether or
// not the humidifier line changed.
type ClimateEvent struct {
	Temperature float32                `json:"temperature_c"`
	Humidity    float32                `json:"humidity_pct"`
	Humidifier  entities.ActuatorState `json:"humidifier"`
	Timestamp   time.Time              `json:"timestamp"`
}
