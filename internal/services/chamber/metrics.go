package chamber

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	temperatureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chamber_temperature_celsius",
		Help: "Last temperature reading.",
	})
	humidityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chamber_humidity_percent",
		Help: "Last humidity reading, clamped to [0,100].",
	})
	humidifierGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chamber_humidifier_on",
		Help: "Whether the humidifier line is currently driven high.",
	})
	climateCycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chamber_climate_cycle_errors_total",
		Help: "Climate cycles aborted by a sensor or bus error.",
	})
	pumpRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chamber_pump_runs_total",
		Help: "Pump activations since process start.",
	})
)
