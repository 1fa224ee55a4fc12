package cvfile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
	"github.com/cvlift/cvlift-api/internal/pkg/storage"
	"github.com/cvlift/cvlift-api/internal/pkg/validator"
)

// multipart form memory ceiling; larger parts spill to disk
const maxUploadMemory = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	f, err := h.svc.Upload(r.Context(), userID, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the 10 MB limit")
		case errors.Is(err, storage.ErrInvalidMimeType):
			response.BadRequest(w, "only PDF, PNG and JPEG files are accepted")
		case errors.Is(err, storage.ErrEmptyFile):
			response.BadRequest(w, "file is empty")
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("upload failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, f)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	files, err := h.svc.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"files": files})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	fileID := chi.URLParam(r, "id")
	if err := validator.ValidateVar(fileID, "required,uuid"); err != nil {
		response.BadRequest(w, "invalid file id")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, fileID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "file not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "file belongs to another user")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Upload)
	r.Get("/", h.List)
	r.Delete("/{id}", h.Delete)
	return r
}
