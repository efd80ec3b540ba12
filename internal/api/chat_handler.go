package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/extract"
)

// maxAudioBytes bounds recorded answers sent for transcription.
const maxAudioBytes = 25 << 20

type ChatRequest struct {
	ConnectionID   string          `json:"connection_id"`
	Messages       []coach.Message `json:"messages"`
	ResumeText     string          `json:"resume_text"`
	JobDescription string          `json:"job_description"`
}

type DocumentResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// POST /chat
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "messages cannot be empty")
		return
	}
	conn, err := h.connections.Target(connectionID(r, req.ConnectionID))
	if h.handleError(w, err, "connection") {
		return
	}

	reply, err := h.coaching.Chat(r.Context(), conn, req.Messages, req.ResumeText, req.JobDescription)
	if h.handleError(w, err, "chat") {
		return
	}
	respondJSON(w, http.StatusOK, TextResponse{Text: reply})
}

// POST /transcribe (multipart: audio, connection_id)
func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := readUpload(w, r, "audio", maxAudioBytes)
	if !ok {
		return
	}
	conn, err := h.connections.Target(connectionID(r, r.FormValue("connection_id")))
	if h.handleError(w, err, "connection") {
		return
	}

	text, err := h.coaching.Transcribe(r.Context(), conn, data, filename)
	if h.handleError(w, err, "transcription") {
		return
	}
	respondJSON(w, http.StatusOK, TextResponse{Text: text})
}

// POST /documents (multipart: file)
func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := readUpload(w, r, "file", extract.MaxFileSize)
	if !ok {
		return
	}

	text, err := extract.Extract(filename, data)
	var unsupported *extract.UnsupportedTypeError
	switch {
	case errors.As(err, &unsupported):
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, extract.ErrNoText):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.handleError(w, err, "document")
		return
	}
	respondJSON(w, http.StatusOK, DocumentResponse{Filename: filename, Text: text})
}

// readUpload reads one multipart file field of at most limit bytes.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return nil, "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing "+field+" file")
		return nil, "", false
	}
	defer file.Close()

	if header.Size > limit {
		respondError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return nil, "", false
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read "+field)
		return nil, "", false
	}
	if int64(len(data)) > limit {
		respondError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return nil, "", false
	}
	return data, header.Filename, true
}
