package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verdelab/growchamber/pkg/broker"
)

type Config struct {
	I2CBus     string
	SensorAddr uint16

	HumidifierPin string
	FanPin        string
	PumpPin       string

	HumidityLow  float64
	HumidityHigh float64

	ClimatePeriod time.Duration
	FanPeriod     time.Duration
	PumpPeriod    time.Duration

	SettleDelay time.Duration
	FanPulse    time.Duration
	PumpPulse   time.Duration

	ClimateLogPath  string
	PumpHistoryPath string

	MetricsAddr string // empty disables the /healthz + /metrics listener

	Broker       broker.Config
	ClimateTopic string
	PumpTopic    string
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvDur(k string, d time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func loadConfig() (Config, error) {
	cfg := Config{
		I2CBus:     getenv("I2C_BUS", "1"),
		SensorAddr: uint16(getenvInt("SENSOR_ADDR", 0x40)),

		HumidifierPin: getenv("HUMIDIFIER_PIN", "GPIO17"),
		FanPin:        getenv("FAN_PIN", "GPIO27"),
		PumpPin:       getenv("PUMP_PIN", "GPIO22"),

		HumidityLow:  getenvFloat("HUMIDITY_LOW_PCT", 70),
		HumidityHigh: getenvFloat("HUMIDITY_HIGH_PCT", 80),

		ClimatePeriod: getenvDur("CLIMATE_PERIOD", time.Minute),
		FanPeriod:     getenvDur("FAN_PERIOD", 15*time.Minute),
		PumpPeriod:    getenvDur("PUMP_PERIOD", 24*time.Hour),

		SettleDelay: getenvDur("SETTLE_DELAY", 85*time.Millisecond),
		FanPulse:    getenvDur("FAN_PULSE", 2*time.Minute),
		PumpPulse:   getenvDur("PUMP_PULSE", 10*time.Second),

		ClimateLogPath:  getenv("CLIMATE_LOG_PATH", "/var/lib/growchamber/climate.csv"),
		PumpHistoryPath: getenv("PUMP_HISTORY_PATH", "/var/lib/growchamber/pump.log"),

		MetricsAddr: getenv("METRICS_ADDR", ":9100"),

		Broker: broker.Config{
			Host:     getenv("MQTT_HOST", ""),
			Port:     getenvInt("MQTT_PORT", 1883),
			User:     getenv("MQTT_USER", ""),
			Password: getenv("MQTT_PASSWORD", ""),
			ClientID: getenv("MQTT_CLIENT_ID", "chamberd"),
		},
		ClimateTopic: getenv("CLIMATE_TOPIC", "chamber/climate"),
		PumpTopic:    getenv("PUMP_TOPIC", "chamber/pump"),
	}

	if cfg.HumidityLow >= cfg.HumidityHigh {
		return Config{}, fmt.Errorf("HUMIDITY_LOW_PCT (%.1f) must be below HUMIDITY_HIGH_PCT (%.1f)",
			cfg.HumidityLow, cfg.HumidityHigh)
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"CLIMATE_PERIOD", cfg.ClimatePeriod},
		{"FAN_PERIOD", cfg.FanPeriod},
		{"PUMP_PERIOD", cfg.PumpPeriod},
		{"SETTLE_DELAY", cfg.SettleDelay},
		{"FAN_PULSE", cfg.FanPulse},
		{"PUMP_PULSE", cfg.PumpPulse},
	} {
		if d.v <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", d.name, d.v)
		}
	}
	return cfg, nil
}
