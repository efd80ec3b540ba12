// internal/api/router.go
package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Backends & connections
	mux.HandleFunc("GET /backends", h.listBackends)
	mux.HandleFunc("GET /backends/{backend}/models", h.listModels)
	mux.HandleFunc("POST /connections", h.createConnection)
	mux.HandleFunc("GET /connections/{connectionID}", h.getConnection)
	mux.HandleFunc("PUT /connections/{connectionID}", h.reconnect)
	mux.HandleFunc("PUT /connections/{connectionID}/backend", h.switchBackend)
	mux.HandleFunc("PUT /connections/{connectionID}/model", h.selectModel)
	mux.HandleFunc("DELETE /connections/{connectionID}", h.deleteConnection)

	// Sessions
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions", h.listSessions)
	mux.HandleFunc("GET /sessions/{sessionID}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{sessionID}", h.deleteSession)
	mux.HandleFunc("GET /sessions/{sessionID}/questions/{questionID}/tip", h.getTip)
	mux.HandleFunc("POST /sessions/{sessionID}/answers", h.submitAnswer)
	mux.HandleFunc("POST /sessions/{sessionID}/followup", h.followup)
	mux.HandleFunc("POST /sessions/{sessionID}/report", h.buildReport)

	// Session-less helpers
	mux.HandleFunc("POST /chat", h.chat)
	mux.HandleFunc("POST /transcribe", h.transcribe)
	mux.HandleFunc("POST /documents", h.uploadDocument)
}
