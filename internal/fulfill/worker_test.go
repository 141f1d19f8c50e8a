package fulfill_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/atelier-noir/checkout-relay/internal/fulfill"
)

func forwardTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := fulfill.NewForwardTask(sampleOrder(), 3)
	require.NoError(t, err)
	return task
}

func TestNewForwardTaskCarriesOrder(t *testing.T) {
	t.Parallel()

	task := forwardTask(t)
	require.Equal(t, fulfill.TypeOrderForward, task.Type())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, "cs_test_fwd", decoded["orderId"])
	require.Equal(t, 34.95, decoded["totalAmount"])
}

func TestHandleForwardTaskDelivers(t *testing.T) {
	t.Parallel()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := fulfill.Worker{Forwarder: newForwarder(srv.URL, ""), Log: zerolog.Nop()}
	require.NoError(t, w.HandleForwardTask(context.Background(), forwardTask(t)))
	require.Equal(t, 1, hits)
}

func TestHandleForwardTaskRetriesSupplierFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := fulfill.Worker{Forwarder: newForwarder(srv.URL, ""), Log: zerolog.Nop()}
	err := w.HandleForwardTask(context.Background(), forwardTask(t))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry, "transient supplier failures must stay retryable")
}

func TestHandleForwardTaskSkipsRetryOnBadPayload(t *testing.T) {
	t.Parallel()

	w := fulfill.Worker{Forwarder: newForwarder("http://unused.invalid", ""), Log: zerolog.Nop()}
	err := w.HandleForwardTask(context.Background(), asynq.NewTask(fulfill.TypeOrderForward, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleForwardTaskSkipsRetryWhenUnconfigured(t *testing.T) {
	t.Parallel()

	w := fulfill.Worker{Forwarder: newForwarder("", ""), Log: zerolog.Nop()}
	err := w.HandleForwardTask(context.Background(), forwardTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
