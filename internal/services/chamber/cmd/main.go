package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdelab/growchamber/internal/hw"
	"github.com/verdelab/growchamber/internal/services/chamber"
	"github.com/verdelab/growchamber/internal/sht20"
	"github.com/verdelab/growchamber/internal/storage"
	"github.com/verdelab/growchamber/pkg/broker"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("chamberd: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Hardware ---
	// The daemon has no purpose without sensing: bus or pin failure is fatal.
	bus, closeBus, err := hw.OpenI2C(cfg.I2CBus, cfg.SensorAddr)
	if err != nil {
		log.Fatalf("chamberd: sensor bus: %v", err)
	}
	defer closeBus()

	humidifier, err := hw.OpenLine(cfg.HumidifierPin)
	if err != nil {
		log.Fatalf("chamberd: humidifier pin: %v", err)
	}
	fan, err := hw.OpenLine(cfg.FanPin)
	if err != nil {
		log.Fatalf("chamberd: fan pin: %v", err)
	}
	pump, err := hw.OpenLine(cfg.PumpPin)
	if err != nil {
		log.Fatalf("chamberd: pump pin: %v", err)
	}

	sensor := sht20.New(bus, cfg.SettleDelay)
	if err := sensor.Reset(ctx); err != nil {
		log.Fatalf("chamberd: sensor reset: %v", err)
	}
	if reg, err := sensor.UserRegister(); err != nil {
		log.Printf("chamberd: user register read failed: %v", err)
	} else {
		log.Printf("chamberd: sensor user register %#02x", reg)
	}

	// --- Telemetry (best-effort) ---
	var climatePub, pumpPub broker.IPublisher
	if cfg.Broker.Host != "" {
		client, err := broker.Connect(ctx, &cfg.Broker)
		if err != nil {
			log.Printf("chamberd: running without telemetry: %v", err)
		} else {
			climatePub = broker.NewPublisher(client, cfg.ClimateTopic)
			pumpPub = broker.NewPublisher(client, cfg.PumpTopic)
		}
	}

	// --- Stores & services ---
	climateLog := storage.NewClimateLog(cfg.ClimateLogPath)
	history := storage.NewPumpHistory(cfg.PumpHistoryPath)

	climate, err := chamber.NewClimateService(sensor, humidifier, climateLog, climatePub,
		cfg.ClimatePeriod, float32(cfg.HumidityLow), float32(cfg.HumidityHigh))
	if err != nil {
		log.Fatalf("chamberd: climate service: %v", err)
	}
	fanSvc, err := chamber.NewFanService(fan, cfg.FanPeriod, cfg.FanPulse)
	if err != nil {
		log.Fatalf("chamberd: fan service: %v", err)
	}
	pumpSvc, err := chamber.NewPumpService(pump, history, pumpPub, cfg.PumpPeriod, cfg.PumpPulse)
	if err != nil {
		log.Fatalf("chamberd: pump service: %v", err)
	}

	log.Printf("chamberd: pump next due %s", pumpSvc.NextDue(time.Now()).Format(time.RFC3339))

	// --- Operational endpoints ---
	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("chamberd: metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("chamberd: metrics server: %v", err)
			}
		}()
	}

	// --- Run ---
	var wg sync.WaitGroup
	for name, start := range map[string]func(context.Context){
		"climate": climate.Start,
		"fan":     fanSvc.Start,
		"pump":    pumpSvc.Start,
	} {
		wg.Add(1)
		go func(name string, start func(context.Context)) {
			defer wg.Done()
			log.Printf("chamberd: %s service started", name)
			start(ctx)
		}(name, start)
	}

	<-ctx.Done()
	log.Println("chamberd: shutting down")
	wg.Wait()

	if srv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}
}
