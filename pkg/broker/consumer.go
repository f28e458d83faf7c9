package broker

import (
	"context"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. A non-nil return is logged, not
// redelivered; QoS redelivery is the broker's concern.
type Handler func(topic string, msg mqtt.Message) error

// Consumer subscribes to one topic filter and dispatches to a handler.
type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, qos: qos, handler: handler}
}

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		if c.handler == nil {
			log.Printf("broker: no handler for topic %s", c.topic)
			return
		}
		if err := c.handler(m.Topic(), m); err != nil {
			log.Printf("broker: handler error on %s: %v", m.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("broker: subscribed to %s (qos %d)", c.topic, c.qos)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
	return nil
}
