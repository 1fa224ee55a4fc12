package coupon

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
	"github.com/cvlift/cvlift-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

// RedeemRequest carries the coupon code the user typed.
type RedeemRequest struct {
	Text string `json:"text" validate:"required,min=1,max=100"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Redeem answers with the flat {error} / {credits_added} shape the frontend
// coupon form consumes, which predates the envelope.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req RedeemRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Redeem(r.Context(), userID, req.Text)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("coupon redemption failed")
		response.InternalError(w)
		return
	}

	if !result.Success {
		response.Raw(w, http.StatusOK, map[string]interface{}{"error": result.Message})
		return
	}

	response.Raw(w, http.StatusOK, map[string]interface{}{
		"credits_added": result.CreditsAdded,
		"message":       result.Message,
	})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/redeem", h.Redeem)
	return r
}
