package telemetry

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

type healthHandler struct {
	mqtt   mqtt.Client
	influx influxdb2.Client
	svc    *Service
}

func NewHealthHandler(m mqtt.Client, i influxdb2.Client, s *Service) http.Handler {
	return &healthHandler{mqtt: m, influx: i, svc: s}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		InfluxOK        bool    `json:"influx_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		MQTTConnected:   h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		InfluxOK:        h.influx != nil,
		LastWriteErrorS: h.svc.LastErrorAge().Seconds(),
	}
	switch {
	case st.MQTTConnected && st.InfluxOK && h.svc.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected || st.InfluxOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	mqtt     mqtt.Client
	influx   influxdb2.Client
	svc      *Service
	minError time.Duration
}

// NewReadyHandler answers 200 only while every dependency is up and the write
// path has been error-free for minOkErrorAge.
func NewReadyHandler(m mqtt.Client, i influxdb2.Client, s *Service, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{mqtt: m, influx: i, svc: s, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.mqtt != nil && h.mqtt.IsConnectionOpen() && h.influx != nil && h.svc.LastErrorAge() > h.minError
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
