// Package queue adapts message brokers into a uniform stream of job deliveries.
// Brokers deliver at least once; every delivery must be settled with Ack or Nack.
package queue

import (
	"context"
)

// Delivery is one broker message awaiting settlement.
type Delivery struct {
	// ID is a broker-specific identifier used only for logging.
	ID   string
	Body []byte

	ack  func() error
	nack func(requeue bool) error
}

// NewDelivery wraps broker-specific settlement callbacks.
func NewDelivery(id string, body []byte, ack func() error, nack func(requeue bool) error) Delivery {
	return Delivery{ID: id, Body: body, ack: ack, nack: nack}
}

// Ack settles the message as processed.
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack returns the message to the broker, optionally for redelivery.
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Handler processes one delivery. The context it receives is not canceled
// when consumption stops, so in-flight work can finish.
type Handler func(ctx context.Context, d Delivery)

// Source streams deliveries from a broker one at a time.
type Source interface {
	// Consume blocks, invoking handle for each delivery until ctx ends or the
	// broker connection fails. It returns nil on a clean shutdown.
	Consume(ctx context.Context, handle Handler) error
	Close() error
}
