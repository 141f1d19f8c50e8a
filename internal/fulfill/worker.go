package fulfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/atelier-noir/checkout-relay/internal/order"
)

// Worker executes forward tasks dequeued by the asynq server.
type Worker struct {
	Forwarder *Forwarder
	Log       zerolog.Logger
}

// HandleForwardTask delivers the order carried by the task. Transient
// supplier failures return an error so asynq retries with backoff;
// unrecoverable conditions skip retry.
func (w Worker) HandleForwardTask(ctx context.Context, t *asynq.Task) error {
	if w.Forwarder == nil {
		return fmt.Errorf("fulfill worker: forwarder not configured: %w", asynq.SkipRetry)
	}
	var o order.Order
	if err := json.Unmarshal(t.Payload(), &o); err != nil {
		return fmt.Errorf("decode forward task: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.Forwarder.Deliver(ctx, o); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		w.Log.Warn().Err(err).Str("order_id", o.OrderID).Msg("forward attempt failed")
		return err
	}
	w.Log.Info().Str("order_id", o.OrderID).Msg("order forwarded to supplier")
	return nil
}
