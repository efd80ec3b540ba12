package api

import (
	"errors"
	"net/http"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/domain/connection"
)

// ── Request / Response types ────────────────────────────────────────────────

type BackendResponse struct {
	ID            backend.Identity      `json:"id"`
	Label         string                `json:"label"`
	HelpURL       string                `json:"help_url"`
	Models        []backend.ModelOption `json:"models"`
	Transcription bool                  `json:"transcription"`
	Local         bool                  `json:"local"`
}

type ConnectRequest struct {
	Backend    string `json:"backend"`
	Credential string `json:"credential"`
	Model      string `json:"model"`
}

type ReconnectRequest struct {
	Credential string `json:"credential"`
	Model      string `json:"model"`
}

type SwitchBackendRequest struct {
	Backend string `json:"backend"`
}

type SelectModelRequest struct {
	Model string `json:"model"`
}

// ConnectionResponse never carries the credential.
type ConnectionResponse struct {
	ID        string                `json:"id"`
	Backend   backend.Identity      `json:"backend"`
	Model     string                `json:"model"`
	Connected bool                  `json:"connected"`
	Models    []backend.ModelOption `json:"models"`
	Message   string                `json:"message,omitempty"`
}

func toConnectionResponse(c connection.Connection, message string) ConnectionResponse {
	return ConnectionResponse{
		ID:        c.ID,
		Backend:   c.Backend,
		Model:     c.Model,
		Connected: c.Connected,
		Models:    c.Models,
		Message:   message,
	}
}

// ── Handlers ────────────────────────────────────────────────────────────────

// GET /backends
func (h *Handler) listBackends(w http.ResponseWriter, r *http.Request) {
	specs := backend.All()
	response := make([]BackendResponse, len(specs))
	for i, s := range specs {
		response[i] = BackendResponse{
			ID:            s.ID,
			Label:         s.Label,
			HelpURL:       s.HelpURL,
			Models:        s.Models,
			Transcription: s.Transcription,
			Local:         s.Discovery,
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// GET /backends/{backend}/models?credential=
func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	id, err := backend.Parse(r.PathValue("backend"))
	if h.handleError(w, err, "backend") {
		return
	}
	models, err := h.verifier.Models(r.Context(), id, r.URL.Query().Get("credential"))
	if h.handleError(w, err, "models") {
		return
	}
	respondJSON(w, http.StatusOK, models)
}

// POST /connections
func (h *Handler) createConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := backend.Parse(req.Backend)
	if h.handleError(w, err, "backend") {
		return
	}

	conn := connection.New()
	msg, err := conn.Connect(r.Context(), h.verifier, id, req.Credential, req.Model)
	h.connections.Save(conn)
	h.respondConnect(w, *conn, msg, err, http.StatusCreated)
}

// PUT /connections/{connectionID}
func (h *Handler) reconnect(w http.ResponseWriter, r *http.Request) {
	var req ReconnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	conn, rev, err := h.connections.Snapshot(r.PathValue("connectionID"))
	if h.handleError(w, err, "connection") {
		return
	}

	// Verification talks to the backend, so it runs on a copy outside the
	// registry lock and is only committed if nothing else changed meanwhile.
	msg, err := conn.Connect(r.Context(), h.verifier, conn.Backend, req.Credential, req.Model)
	if _, commitErr := h.connections.Commit(conn, rev); commitErr != nil {
		h.handleError(w, commitErr, "connection")
		return
	}
	h.respondConnect(w, conn, msg, err, http.StatusOK)
}

func (h *Handler) respondConnect(w http.ResponseWriter, conn connection.Connection, msg string, err error, okStatus int) {
	var verifyErr *connection.VerifyError
	switch {
	case err == nil:
		respondJSON(w, okStatus, toConnectionResponse(conn, msg))
	case errors.As(err, &verifyErr):
		status := http.StatusBadGateway
		if verifyErr.Message == backend.InvalidKeyMessage {
			status = http.StatusUnauthorized
		}
		respondJSON(w, status, toConnectionResponse(conn, verifyErr.Message))
	default:
		h.handleError(w, err, "connection")
	}
}

// GET /connections/{connectionID}
func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connections.View(r.PathValue("connectionID"))
	if h.handleError(w, err, "connection") {
		return
	}
	respondJSON(w, http.StatusOK, toConnectionResponse(conn, ""))
}

// PUT /connections/{connectionID}/backend
func (h *Handler) switchBackend(w http.ResponseWriter, r *http.Request) {
	var req SwitchBackendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := backend.Parse(req.Backend)
	if h.handleError(w, err, "backend") {
		return
	}
	conn, err := h.connections.Update(r.PathValue("connectionID"), func(c *connection.Connection) error {
		return c.SwitchBackend(id)
	})
	if h.handleError(w, err, "connection") {
		return
	}
	respondJSON(w, http.StatusOK, toConnectionResponse(conn, ""))
}

// PUT /connections/{connectionID}/model
func (h *Handler) selectModel(w http.ResponseWriter, r *http.Request) {
	var req SelectModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	conn, err := h.connections.Update(r.PathValue("connectionID"), func(c *connection.Connection) error {
		return c.SelectModel(req.Model)
	})
	if h.handleError(w, err, "connection") {
		return
	}
	respondJSON(w, http.StatusOK, toConnectionResponse(conn, ""))
}

// DELETE /connections/{connectionID}
func (h *Handler) deleteConnection(w http.ResponseWriter, r *http.Request) {
	h.connections.Delete(r.PathValue("connectionID"))
	w.WriteHeader(http.StatusNoContent)
}
