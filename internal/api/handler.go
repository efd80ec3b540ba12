// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/connection"
	"github.com/interviewcoach/backend/internal/domain/session"
	"github.com/interviewcoach/backend/internal/jsonrepair"
	"github.com/interviewcoach/backend/internal/service"
	"github.com/interviewcoach/backend/internal/store"
)

// maxBodyBytes bounds JSON request bodies. Resumes and job descriptions
// travel inside them.
const maxBodyBytes = 1 << 20

// Handler holds all dependencies needed by HTTP handlers.
// Instead of relying on package-level globals, every handler method
// receives its dependencies through this struct.
type Handler struct {
	coaching    *service.CoachingService
	verifier    connection.Verifier
	connections *Connections
	logger      *zap.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(cs *service.CoachingService, v connection.Verifier, conns *Connections, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coaching:    cs,
		verifier:    v,
		connections: conns,
		logger:      logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads the request body into v. It writes a 400 and returns
// false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleError maps domain, store and backend errors onto HTTP responses.
// Returns true if an error was handled (caller should return).
func (h *Handler) handleError(w http.ResponseWriter, err error, entity string) bool {
	if err == nil {
		return false
	}

	var (
		auth        *backend.AuthenticationError
		unreachable *backend.ConnectionError
		upstream    *backend.BackendError
		unsupported *backend.UnsupportedBackendError
		empty       *backend.EmptyTranscriptError
		malformed   *jsonrepair.MalformedOutputError
		plan        *coach.PlanBuildError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, ErrUnknownConnection):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownQuestion):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrEmptyAnswer),
		errors.Is(err, connection.ErrEmptyModel),
		errors.Is(err, backend.ErrUnknownBackend):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoAnswers),
		errors.Is(err, connection.ErrNotConnected),
		errors.Is(err, ErrConnectionChanged):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unsupported), errors.As(err, &empty):
		respondError(w, http.StatusUnprocessableEntity, coach.UserMessage(err))
	case errors.As(err, &auth):
		respondError(w, http.StatusUnauthorized, coach.UserMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, coach.UserMessage(err))
	case errors.As(err, &unreachable), errors.As(err, &upstream), errors.As(err, &malformed),
		errors.As(err, &plan), errors.Is(err, coach.ErrEmptyReply):
		h.logger.Warn("backend call failed", zap.String("entity", entity), zap.Error(err))
		respondError(w, http.StatusBadGateway, coach.UserMessage(err))
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		h.logger.Error("request failed", zap.String("entity", entity), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}
