package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/session"
)

// wsFrame is every server-to-client frame. The first frame carries only
// the session ID; later frames carry a turn result or an error.
type wsFrame struct {
	SessionID string             `json:"session_id,omitempty"`
	Result    *router.TurnResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
}

const wsCleanupTimeout = 5 * time.Second

// handleWebSocket runs one conversation per connection: the session is
// created on connect and terminated on goodbye or disconnect.
func (g *Gateway) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		conn.SetReadLimit(security.DefaultMaxBodySize)

		g.conns.Add(1)
		defer g.conns.Done()
		g.metrics.WebSocketOpened()
		defer g.metrics.WebSocketClosed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		if g.baseCtx != nil {
			stop := context.AfterFunc(g.baseCtx, cancel)
			defer stop()
		}

		id, err := g.assistant.StartSession(ctx)
		if err != nil {
			_, msg := errorStatus(err, "")
			_ = wsjson.Write(ctx, conn, wsFrame{Error: msg})
			_ = conn.Close(websocket.StatusTryAgainLater, msg)
			return
		}
		g.audit.Log(security.AuditEvent{Type: security.EventSessionCreate, SessionID: id, RemoteAddr: r.RemoteAddr, Transport: "ws"})

		ended := false
		defer func() {
			if !ended {
				g.endDetached(id, r.RemoteAddr)
			}
		}()

		if err := wsjson.Write(ctx, conn, wsFrame{SessionID: id}); err != nil {
			return
		}

		status, reason := g.converse(ctx, conn, id, r.RemoteAddr, &ended)
		_ = conn.Close(status, reason)
	}
}

// converse reads messages until the peer leaves, the session ends or the
// gateway stops. It returns the close status to send.
func (g *Gateway) converse(ctx context.Context, conn *websocket.Conn, id, remote string, ended *bool) (websocket.StatusCode, string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return websocket.StatusGoingAway, "server shutting down"
			}
			return websocket.StatusNormalClosure, ""
		}

		msg, err := g.parseMessage(data)
		if err != nil {
			_, text := errorStatus(err, "")
			if werr := wsjson.Write(ctx, conn, wsFrame{Error: text}); werr != nil {
				return websocket.StatusInternalError, ""
			}
			continue
		}

		res, err := g.assistant.HandleTurn(ctx, id, msg)
		switch {
		case errors.Is(err, session.ErrNotFound):
			*ended = true
			_ = wsjson.Write(ctx, conn, wsFrame{Error: msgNotFound})
			return websocket.StatusNormalClosure, "session expired"
		case err != nil:
			_, text := errorStatus(err, res.Response)
			if werr := wsjson.Write(ctx, conn, wsFrame{Error: text}); werr != nil {
				return websocket.StatusInternalError, ""
			}
			continue
		}

		if err := wsjson.Write(ctx, conn, wsFrame{Result: &res}); err != nil {
			return websocket.StatusInternalError, ""
		}
		if res.EndSession {
			*ended = true
			g.endDetached(id, remote)
			return websocket.StatusNormalClosure, "goodbye"
		}
	}
}

// endDetached terminates a session outside the request context, which
// may already be cancelled.
func (g *Gateway) endDetached(id, remote string) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCleanupTimeout)
	defer cancel()
	if err := g.assistant.EndSession(ctx, id); err != nil {
		g.logger.Warn("websocket: end session", "session_id", id, "error", err)
		return
	}
	g.audit.Log(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, RemoteAddr: remote, Transport: "ws"})
}
