package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/atelier-noir/checkout-relay/internal/common"
	"github.com/atelier-noir/checkout-relay/internal/obs"
)

// Handler exposes the create-checkout-session endpoint. The response shapes
// ({"url":...} on success, {"error":...} on failure) are the storefront's
// wire contract and must not change.
type Handler struct {
	Svc *Service
	Log zerolog.Logger
}

// Create handles POST /create-checkout-session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		h.count("error")
		common.JSON(w, http.StatusInternalServerError, map[string]string{"error": "checkout service not configured"})
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("bad_request")
		common.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	session, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
			status = appErr.HTTPStatus
		}
		if status >= http.StatusInternalServerError {
			h.count("provider_error")
			h.Log.Error().Err(err).Msg("create checkout session")
		} else {
			h.count("bad_request")
		}
		common.JSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	h.count("created")
	h.Log.Info().Str("session_id", session.ID).Msg("checkout session created")
	common.JSON(w, http.StatusOK, map[string]string{"url": session.URL})
}

func (h *Handler) count(result string) {
	if obs.CheckoutSessionsTotal != nil {
		obs.CheckoutSessionsTotal.WithLabelValues(result).Inc()
	}
}
