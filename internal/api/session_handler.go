package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/session"
	"github.com/interviewcoach/backend/internal/id"
	"github.com/interviewcoach/backend/internal/service"
	"github.com/interviewcoach/backend/internal/store"
)

// connectionHeader lets GET requests name their connection without putting
// it in the URL.
const connectionHeader = "X-Connection-ID"

// ── Request / Response types ────────────────────────────────────────────────

type CreateSessionRequest struct {
	ConnectionID   string `json:"connection_id"`
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`

	Field           string   `json:"field,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty"`
}

type SessionResponse struct {
	ID        string                   `json:"id"`
	Backend   backend.Identity         `json:"backend"`
	Model     string                   `json:"model"`
	Mode      session.Mode             `json:"mode"`
	Plan      *coach.SessionPlan       `json:"plan"`
	Answers   []coach.AnsweredQuestion `json:"answers"`
	Report    *coach.SessionReport     `json:"report,omitempty"`
	Next      *coach.Question          `json:"next_question,omitempty"`
	Complete  bool                     `json:"complete"`
	CreatedAt time.Time                `json:"created_at"`
}

type SubmitAnswerRequest struct {
	ConnectionID string `json:"connection_id"`
	QuestionID   int    `json:"question_id"`
	Answer       string `json:"answer"`
}

type FollowupRequest struct {
	ConnectionID string          `json:"connection_id"`
	Messages     []coach.Message `json:"messages"`
}

type ReportRequest struct {
	ConnectionID string `json:"connection_id"`
}

type TextResponse struct {
	Text string `json:"text"`
}

func toSessionResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Backend:   s.Backend,
		Model:     s.Model,
		Mode:      s.Mode,
		Plan:      s.Plan,
		Answers:   s.Answers,
		Report:    s.Report,
		Complete:  s.Complete(),
		CreatedAt: s.CreatedAt,
	}
	if next, ok := s.NextQuestion(); ok {
		resp.Next = &next
	}
	return resp
}

// connectionID picks the connection named in the body, the query string or
// the header, in that order.
func connectionID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if v := r.URL.Query().Get("connection_id"); v != "" {
		return v
	}
	return r.Header.Get(connectionHeader)
}

// sessionID validates the session path parameter. It writes a 404 and
// returns false for ids that cannot exist.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid := r.PathValue("sessionID")
	if !id.Valid(sid) {
		respondError(w, http.StatusNotFound, "session not found")
		return "", false
	}
	return sid, true
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /sessions
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	conn, err := h.connections.Target(connectionID(r, req.ConnectionID))
	if h.handleError(w, err, "connection") {
		return
	}

	sess, err := h.coaching.StartSession(r.Context(), conn, service.StartRequest{
		ResumeText:      req.ResumeText,
		JobDescription:  req.JobDescription,
		Field:           req.Field,
		ExperienceLevel: req.ExperienceLevel,
		FocusAreas:      req.FocusAreas,
	})
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// GET /sessions
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.coaching.ListSessions(r.Context())
	if h.handleError(w, err, "sessions") {
		return
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

// GET /sessions/{sessionID}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.coaching.GetSession(r.Context(), sid)
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// DELETE /sessions/{sessionID}
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	if h.handleError(w, h.coaching.DeleteSession(r.Context(), sid), "session") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /sessions/{sessionID}/questions/{questionID}/tip
func (h *Handler) getTip(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	qid, err := strconv.Atoi(r.PathValue("questionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "question id must be a number")
		return
	}
	conn, err := h.connections.Target(connectionID(r, ""))
	if h.handleError(w, err, "connection") {
		return
	}

	tip, err := h.coaching.Tip(r.Context(), conn, sid, qid)
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, TextResponse{Text: tip})
}

// POST /sessions/{sessionID}/answers
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SubmitAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		respondError(w, http.StatusBadRequest, session.ErrEmptyAnswer.Error())
		return
	}
	conn, err := h.connections.Target(connectionID(r, req.ConnectionID))
	if h.handleError(w, err, "connection") {
		return
	}

	item, err := h.coaching.SubmitAnswer(r.Context(), conn, sid, req.QuestionID, req.Answer)
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// POST /sessions/{sessionID}/followup
func (h *Handler) followup(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req FollowupRequest
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

	reply, err := h.coaching.Followup(r.Context(), conn, sid, req.Messages)
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, TextResponse{Text: reply})
}

// POST /sessions/{sessionID}/report
func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req ReportRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	conn, err := h.connections.Target(connectionID(r, req.ConnectionID))
	if h.handleError(w, err, "connection") {
		return
	}

	report, err := h.coaching.Report(r.Context(), conn, sid)
	if h.handleError(w, err, "session") {
		return
	}
	respondJSON(w, http.StatusOK, report)
}
