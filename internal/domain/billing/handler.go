package billing

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
	"github.com/cvlift/cvlift-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Checkout starts a hosted checkout and returns the gateway redirect URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	resp, err := h.svc.CreateCheckout(r.Context(), userID, req.Credits)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("checkout failed")
		response.Error(w, http.StatusBadGateway, "CHECKOUT_FAILED", "failed to start checkout")
		return
	}

	response.Created(w, resp)
}

// Transactions lists the caller's purchase history.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}

// Webhook receives Mercado Pago notifications. The contract is fixed by the
// gateway: anything but an unexpected panic answers HTTP 200, otherwise the
// gateway enters a retry storm. Bodies it cannot act on are acknowledged and
// dropped.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var n webhookNotification
	if err := response.DecodeJSON(r.Body, &n); err != nil {
		log.Warn().Err(err).Msg("malformed payment notification")
		response.Raw(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	result, err := h.svc.ProcessNotification(r.Context(), n.Topic, n.Resource)
	if err != nil {
		log.Error().Err(err).Str("topic", n.Topic).Str("resource", n.Resource).Msg("payment notification failed")
		response.Raw(w, http.StatusOK, map[string]interface{}{"success": false})
		return
	}

	if result.Ignored {
		log.Info().Str("topic", n.Topic).Str("resource", n.Resource).Msg("payment notification ignored")
	} else {
		log.Info().
			Str("topic", n.Topic).
			Str("status", string(result.Status)).
			Int("credits_added", result.CreditsAdded).
			Msg("payment notification processed")
	}

	response.Raw(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Routes mounts the authenticated billing endpoints. The webhook is mounted
// separately at the top level because the gateway calls it unauthenticated.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/checkout", h.Checkout)
	r.Get("/transactions", h.Transactions)
	return r
}
