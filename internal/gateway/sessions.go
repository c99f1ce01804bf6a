package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/go-chi/chi/v5"
)

// CreateSessionResponse is the body of POST /v1/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// MessageRequest is the body of POST /v1/sessions/{id}/messages and of
// inbound WebSocket frames.
type MessageRequest struct {
	Message string `json:"message"`
}

func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := g.assistant.StartSession(r.Context())
		if err != nil {
			g.fail(w, r, err, "")
			return
		}
		g.audit.Log(security.AuditEvent{Type: security.EventSessionCreate, SessionID: id, RemoteAddr: r.RemoteAddr, Transport: "http"})
		writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: id})
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := g.assistant.Sessions().Info(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.fail(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.assistant.EndSession(r.Context(), id); err != nil {
			g.fail(w, r, err, "")
			return
		}
		g.audit.Log(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, RemoteAddr: r.RemoteAddr, Transport: "http"})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) handleMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		msg, err := g.decodeMessage(r)
		if err != nil {
			g.audit.Log(security.AuditEvent{Type: security.EventInvalidRequest, SessionID: id, RemoteAddr: r.RemoteAddr, Detail: err.Error()})
			g.fail(w, r, err, "")
			return
		}

		res, err := g.assistant.HandleTurn(r.Context(), id, msg)
		if err != nil {
			g.fail(w, r, err, res.Response)
			return
		}
		if res.EndSession {
			g.endAfterReply(r, id)
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// decodeMessage reads and validates a MessageRequest body.
func (g *Gateway) decodeMessage(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, security.DefaultMaxBodySize+1))
	if err != nil {
		return "", err
	}
	return g.parseMessage(body)
}

func (g *Gateway) parseMessage(body []byte) (string, error) {
	if err := security.ValidateBody(body, security.DefaultMaxBodySize, security.DefaultMaxJSONDepth); err != nil {
		return "", err
	}
	var req MessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", security.ErrInvalidJSON
	}
	if err := security.ValidateUtterance(req.Message, g.config.MaxMessageChars); err != nil {
		return "", err
	}
	return req.Message, nil
}

// endAfterReply terminates a session whose turn asked for it. Failure is
// logged only: the reply was already produced and the keys expire anyway.
func (g *Gateway) endAfterReply(r *http.Request, id string) {
	if err := g.assistant.EndSession(r.Context(), id); err != nil {
		g.logger.Warn("gateway: end session after goodbye", "session_id", id, "error", err)
		return
	}
	g.audit.Log(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, RemoteAddr: r.RemoteAddr, Detail: string(router.IntentGoodbye)})
}

func (g *Gateway) handleStats() http.HandlerFunc {
	type statsResponse struct {
		health.Stats
		Uptime int64 `json:"uptime_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var resp statsResponse
		var err error
		if g.stats != nil {
			resp.Stats, err = g.stats.Collect(r.Context())
		} else {
			resp.ActiveSessions, err = g.assistant.Sessions().Count(r.Context())
		}
		if err != nil {
			g.fail(w, r, err, "")
			return
		}
		resp.Uptime = int64(time.Since(g.startedAt) / time.Second)
		writeJSON(w, http.StatusOK, resp)
	}
}

// fail logs err and writes the mapped error reply.
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := errorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		g.logger.Error("gateway: request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		g.logger.Debug("gateway: request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, msg)
}
