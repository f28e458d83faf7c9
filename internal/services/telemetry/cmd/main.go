package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdelab/growchamber/internal/services/telemetry"
	"github.com/verdelab/growchamber/pkg/broker"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	cfg := struct {
		Broker broker.Config

		InfluxURL    string
		InfluxToken  string
		InfluxOrg    string
		InfluxBucket string

		ClimateTopic string
		PumpTopic    string

		HTTPPort int
	}{
		Broker: broker.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("MQTT_CLIENT_ID", "telemetryd"),
		},

		InfluxURL:    envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "growlab"),
		InfluxBucket: envStr("INFLUX_BUCKET", "chamber"),

		ClimateTopic: envStr("CLIMATE_TOPIC", "chamber/climate"),
		PumpTopic:    envStr("PUMP_TOPIC", "chamber/pump"),

		HTTPPort: envInt("HTTP_PORT", 8080),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === InfluxDB ===
	influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	defer influx.Close()
	svc := telemetry.NewService(influx.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket))

	// === MQTT ===
	client, err := broker.Connect(ctx, &cfg.Broker)
	if err != nil {
		log.Fatalf("telemetryd: mqtt: %v", err)
	}
	defer broker.Close(client)

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/healthz", telemetry.NewHealthHandler(client, influx, svc))
	mux.Handle("/readyz", telemetry.NewReadyHandler(client, influx, svc, 2*time.Second))
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("telemetryd: HTTP listening on :%d", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("telemetryd: http server: %v", err)
		}
	}()

	// === Consumers ===
	// Climate events are a steady stream at QoS 0; pump runs are rare and
	// arrive at QoS 1 (the service dedups redeliveries).
	climate := broker.NewConsumer(client, cfg.ClimateTopic, 0, svc.HandleClimate)
	pump := broker.NewConsumer(client, cfg.PumpTopic, 1, svc.HandlePumpRun)
	go func() {
		if err := climate.Consume(ctx); err != nil {
			log.Printf("telemetryd: climate consumer: %v", err)
		}
	}()
	go func() {
		if err := pump.Consume(ctx); err != nil {
			log.Printf("telemetryd: pump consumer: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("telemetryd: shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
