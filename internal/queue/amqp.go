package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultQueueName is the durable work queue the producer publishes to.
const DefaultQueueName = "vts3a_convert_queue"

// AMQPConfig describes a RabbitMQ connection and the queue to consume.
type AMQPConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	VHost       string
	Queue       string
	ConsumerTag string
	Prefetch    int
}

// URL renders the amqp:// connection string.
func (c AMQPConfig) URL() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// AMQPChannel is the subset of *amqp.Channel used by the source.
type AMQPChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// AMQPSource consumes a durable RabbitMQ queue with manual acknowledgement.
type AMQPSource struct {
	cfg    AMQPConfig
	ch     AMQPChannel
	conn   io.Closer
	logger *zap.Logger
}

// DialAMQP connects to RabbitMQ and opens a channel.
func DialAMQP(cfg AMQPConfig, logger *zap.Logger) (*AMQPSource, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("amqp dial %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp open channel: %w", err)
	}
	return NewAMQPSource(cfg, ch, conn, logger), nil
}

// NewAMQPSource wraps an already-open channel. conn may be nil.
func NewAMQPSource(cfg AMQPConfig, ch AMQPChannel, conn io.Closer, logger *zap.Logger) *AMQPSource {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueueName
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "vts3a"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPSource{cfg: cfg, ch: ch, conn: conn, logger: logger}
}

// Consume declares the queue, limits unacknowledged deliveries to the
// configured prefetch and handles deliveries sequentially.
func (s *AMQPSource) Consume(ctx context.Context, handle Handler) error {
	if _, err := s.ch.QueueDeclare(s.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", s.cfg.Queue, err)
	}
	if err := s.ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := s.ch.Consume(s.cfg.Queue, s.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.cfg.Queue, err)
	}
	s.logger.Info("consuming queue", zap.String("queue", s.cfg.Queue), zap.Int("prefetch", s.cfg.Prefetch))

	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := s.ch.Cancel(s.cfg.ConsumerTag, false); err != nil {
				s.logger.Warn("cancel consumer failed", zap.Error(err))
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("amqp delivery channel closed")
			}
			handle(handlerCtx, amqpDelivery(d))
		}
	}
}

func amqpDelivery(d amqp.Delivery) Delivery {
	id := d.MessageId
	if id == "" {
		id = strconv.FormatUint(d.DeliveryTag, 10)
	}
	return NewDelivery(id, d.Body,
		func() error { return d.Ack(false) },
		func(requeue bool) error { return d.Nack(false, requeue) },
	)
}

// Close closes the channel and, when owned, the connection.
func (s *AMQPSource) Close() error {
	var errs []error
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
