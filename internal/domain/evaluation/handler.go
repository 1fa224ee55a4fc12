package evaluation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/domain/credit"
	"github.com/cvlift/cvlift-api/internal/domain/cvfile"
	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/i18n"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
	"github.com/cvlift/cvlift-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req EvaluateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	language := req.Language
	if language == "" {
		language = i18n.FromAcceptLanguage(r.Header.Get("Accept-Language"))
	}

	form := Form{
		FileID:          req.FileID,
		DesiredPosition: req.DesiredPosition,
		Skills:          req.Skills,
		Tools:           req.Tools,
		Country:         req.Country,
		Language:        language,
		AnalyseAgain:    req.AnalyseAgain,
	}

	rows, err := h.svc.Evaluate(r.Context(), userID, form)
	if err != nil {
		switch {
		case errors.Is(err, cvfile.ErrNotFound):
			response.NotFound(w, "file not found")
		case errors.Is(err, cvfile.ErrNotOwner):
			response.Forbidden(w, "file belongs to another user")
		case errors.Is(err, credit.ErrInsufficientCredits):
			response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "not enough credits to run an evaluation")
		case errors.Is(err, ErrNotCV):
			response.Error(w, http.StatusUnprocessableEntity, "NOT_A_CV", "the uploaded file does not look like a CV")
		default:
			log.Error().Err(err).Str("user_id", userID).Str("file_id", req.FileID).Msg("evaluation failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{"results": rows})
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if err := validator.ValidateVar(fileID, "required,uuid"); err != nil {
		response.BadRequest(w, "invalid file id")
		return
	}

	rows, err := h.svc.Results(r.Context(), userID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, cvfile.ErrNotFound):
			response.NotFound(w, "file not found")
		case errors.Is(err, cvfile.ErrNotOwner):
			response.Forbidden(w, "file belongs to another user")
		case errors.Is(err, ErrNoResults):
			response.NotFound(w, "no evaluation results for this file")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{"results": rows})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Evaluate)
	r.Get("/{fileID}", h.Results)
	return r
}
