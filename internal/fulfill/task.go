package fulfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/atelier-noir/checkout-relay/internal/obs"
	"github.com/atelier-noir/checkout-relay/internal/order"
)

// TypeOrderForward is the asynq task type for supplier forwarding.
const TypeOrderForward = "fulfillment:forward"

// NewForwardTask encodes an order as a forwarding task. The task ID is the
// provider session id, so a duplicate webhook delivery cannot enqueue the
// same order twice while the first task is still pending.
func NewForwardTask(o order.Order, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode forward task: %w", err)
	}
	if maxRetry <= 0 {
		maxRetry = 6
	}
	opts := []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30 * time.Second),
	}
	if o.OrderID != "" {
		opts = append(opts, asynq.TaskID(o.OrderID))
	}
	return asynq.NewTask(TypeOrderForward, payload, opts...), nil
}

// Enqueuer hands orders to the retry queue instead of forwarding inline.
// It satisfies the same sink interface as Forwarder.
type Enqueuer struct {
	Client   *asynq.Client
	MaxRetry int
	Queue    string
	Log      zerolog.Logger
}

// Deliver enqueues the order for asynchronous forwarding.
func (e *Enqueuer) Deliver(ctx context.Context, o order.Order) error {
	if e.Client == nil {
		return errors.New("fulfill: task client not configured")
	}
	task, err := NewForwardTask(o, e.MaxRetry)
	if err != nil {
		return err
	}
	opts := []asynq.Option{}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	info, err := e.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			e.Log.Info().Str("order_id", o.OrderID).Msg("forward task already queued")
			if obs.OrderForwardTotal != nil {
				obs.OrderForwardTotal.WithLabelValues("queue", "duplicate").Inc()
			}
			return nil
		}
		return fmt.Errorf("enqueue forward task for %s: %w", o.OrderID, err)
	}
	e.Log.Info().Str("order_id", o.OrderID).Str("task_id", info.ID).Str("queue", info.Queue).Msg("forward task enqueued")
	if obs.OrderForwardTotal != nil {
		obs.OrderForwardTotal.WithLabelValues("queue", "enqueued").Inc()
	}
	return nil
}
