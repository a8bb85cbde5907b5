// Package broker forwards queue events to a RabbitMQ topic exchange so
// services outside this API (loyalty, analytics, a customer app backend) can
// follow the pickup queue. Routing keys are the event types, e.g.
// "queue.expired".
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	bufferSize     = 256
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Envelope is the message body sent to the exchange.
type Envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher buffers events and publishes them from Run. Publish never blocks;
// when the buffer is full the event is dropped with a warning.
type Publisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	events   chan Envelope
	now      func() time.Time
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := NewPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		events:   make(chan Envelope, bufferSize),
		now:      time.Now,
	}
}

// Publish queues an event for delivery.
func (p *Publisher) Publish(eventType string, payload any) {
	env := Envelope{Type: eventType, Payload: payload, Timestamp: p.now().UTC()}
	select {
	case p.events <- env:
	default:
		log.Printf("WARN: broker buffer full, dropping %s event", eventType)
	}
}

// Run delivers buffered events until ctx is cancelled, then drains what is
// left and closes the channel and connection.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case env := <-p.events:
			p.send(env)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case env := <-p.events:
			p.send(env)
		default:
			return
		}
	}
}

func (p *Publisher) send(env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("ERROR: encode %s event: %v", env.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		env.Type,   // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    env.Timestamp,
		})
	if err != nil {
		log.Printf("ERROR: publish %s event: %v", env.Type, err)
	}
}

func (p *Publisher) close() {
	if err := p.ch.Close(); err != nil {
		log.Printf("WARN: close broker channel: %v", err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			log.Printf("WARN: close broker connection: %v", err)
		}
	}
}
