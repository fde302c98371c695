package queue

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubSource consumes a Google Cloud Pub/Sub subscription one message at a time.
type PubSubSource struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
	owned  bool
	logger *zap.Logger
}

// DialPubSub creates a Pub/Sub client using Application Default Credentials.
func DialPubSub(ctx context.Context, projectID, subscriptionID string, logger *zap.Logger) (*PubSubSource, error) {
	if projectID == "" || subscriptionID == "" {
		return nil, errors.New("pubsub project and subscription are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	src := NewPubSubSource(client, subscriptionID, logger)
	src.owned = true
	return src, nil
}

// NewPubSubSource wraps an existing client. The caller keeps ownership of it.
func NewPubSubSource(client *pubsub.Client, subscriptionID string, logger *zap.Logger) *PubSubSource {
	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.NumGoroutines = 1
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSource{client: client, sub: sub, logger: logger}
}

// Consume receives until ctx ends. Receive waits for in-flight handlers
// before returning.
func (s *PubSubSource) Consume(ctx context.Context, handle Handler) error {
	s.logger.Info("consuming subscription", zap.String("subscription", s.sub.ID()))
	err := s.sub.Receive(ctx, func(msgCtx context.Context, m *pubsub.Message) {
		handle(context.WithoutCancel(msgCtx), NewDelivery(m.ID, m.Data,
			func() error {
				m.Ack()
				return nil
			},
			func(bool) error {
				m.Nack()
				return nil
			},
		))
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// Close releases the client when this source created it.
func (s *PubSubSource) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
