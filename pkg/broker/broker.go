// Package broker wraps the paho MQTT client: connect with exponential
// backoff, topic-bound publishers and blocking consumers. Telemetry is
// best-effort; the control loop never depends on the broker being up.
package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// Connect dials the broker, retrying with exponential backoff. The returned
// client is disconnected when ctx is cancelled.
func Connect(ctx context.Context, cfg *Config) (mqtt.Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	const maxRetries = 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("broker: connect to %s failed: %v", addr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("broker: no connection to %s after retries: %w", addr, err)
	}

	log.Printf("broker: connected to %s", addr)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("broker: connection closed")
	}()

	return client, nil
}

// Close disconnects the client if it is still up.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Println("broker: disconnected")
	}
}
