package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

const exchangeKind = "direct"

// Publisher sends case events to a durable direct exchange. A publish that
// finds the connection closed reconnects and retries once.
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dialLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishWithRoutingKey marshals message to JSON and publishes it persistently
func (p *Publisher) PublishWithRoutingKey(routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.openLocked() {
		if err := p.redialLocked(); err != nil {
			return err
		}
	}
	err = p.ch.Publish(p.exchange, routingKey, false, false, msg)
	if isConnClosedErr(err) {
		log.Warnf("RabbitMQ connection lost, reconnecting: %v", err)
		if dialErr := p.redialLocked(); dialErr != nil {
			return fmt.Errorf("failed to publish message: %w (reconnect failed: %v)", err, dialErr)
		}
		err = p.ch.Publish(p.exchange, routingKey, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection and channel are open
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openLocked()
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) openLocked() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil
}

func (p *Publisher) dialLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	// durable, not auto-deleted, not internal, wait for the server
	if err := ch.ExchangeDeclare(p.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) redialLocked() error {
	if err := p.closeLocked(); err != nil {
		log.Debugf("Ignoring close error before reconnect: %v", err)
	}
	return p.dialLocked()
}

func (p *Publisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !isConnClosedErr(err) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !isConnClosedErr(err) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

func isConnClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, amqp.ErrClosed) || strings.Contains(err.Error(), "channel/connection is not open")
}
