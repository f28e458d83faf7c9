package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes payloads to one topic.
type IPublisher interface {
	PublishMessage(payload string) error
	PublishQos(qos byte, retained bool, payload string) error
	Close()
}

// Publisher binds a shared client to a single topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage publishes at QoS 0 (at most once).
func (p *Publisher) PublishMessage(payload string) error {
	return p.PublishQos(0, false, payload)
}

// PublishQos publishes at the given QoS, waiting for the token.
func (p *Publisher) PublishQos(qos byte, retained bool, payload string) error {
	token := p.client.Publish(p.topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects the shared client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
