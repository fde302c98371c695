// Package consumer drives the queue ingress: it pulls job messages one at a time,
// runs them through the orchestrator and settles each delivery through an AckPolicy.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/queue"
)

// State is the lifecycle phase of a Consumer.
type State int32

// Consumer states.
const (
	StateIdle State = iota
	StateConsuming
	StateHandling
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConsuming:
		return "consuming"
	case StateHandling:
		return "handling"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// AckPolicy decides how a handled delivery is settled. result is nil when
// the payload failed validation and no job ran.
type AckPolicy interface {
	Settle(d queue.Delivery, result *convert.Result, validationErr error) error
}

// AlwaysAck acknowledges every delivery regardless of outcome. Failed jobs are
// logged and dropped; nothing is redelivered.
type AlwaysAck struct{}

// Settle implements AckPolicy.
func (AlwaysAck) Settle(d queue.Delivery, _ *convert.Result, _ error) error {
	return d.Ack()
}

// Consumer is a single-threaded queue ingress adapter.
type Consumer struct {
	source    queue.Source
	processor convert.Processor
	policy    AckPolicy
	logger    *zap.Logger
	state     atomic.Int32
}

// New constructs a Consumer. A nil policy defaults to AlwaysAck.
func New(source queue.Source, processor convert.Processor, policy AckPolicy, logger *zap.Logger) *Consumer {
	if policy == nil {
		policy = AlwaysAck{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		source:    source,
		processor: processor,
		policy:    policy,
		logger:    logger,
	}
}

// State reports the current lifecycle phase.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// Run consumes until ctx is canceled or the source fails, then closes the
// source. The job being handled when ctx ends runs to completion first.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConsuming)) {
		return errors.New("consumer already started")
	}
	c.logger.Info("consumer started")

	consumeErr := c.source.Consume(ctx, c.handle)

	c.setState(StateShuttingDown)
	c.logger.Info("consumer shutting down")
	closeErr := c.source.Close()
	c.setState(StateStopped)

	if consumeErr != nil {
		return fmt.Errorf("consume: %w", consumeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close source: %w", closeErr)
	}
	c.logger.Info("consumer stopped")
	return nil
}

func (c *Consumer) handle(ctx context.Context, d queue.Delivery) {
	c.setState(StateHandling)
	defer c.setState(StateConsuming)

	logger := c.logger.With(zap.String("delivery_id", d.ID))

	var result *convert.Result
	job, err := convert.ParseJob(d.Body)
	if err != nil {
		var vErr *convert.ValidationError
		kind := "unknown"
		if errors.As(err, &vErr) {
			kind = string(vErr.Kind)
		}
		metrics.ObserveRejected("queue", kind)
		logger.Warn("rejected job message", zap.String("kind", kind), zap.String("reason", err.Error()))
	} else {
		res := c.processor.Process(ctx, job)
		result = &res
	}

	if settleErr := c.policy.Settle(d, result, err); settleErr != nil {
		logger.Error("settle delivery failed", zap.Error(settleErr))
	}
}
