// Package mcpserver exposes the assistant as Model Context Protocol tools
// so other agents can ask privacy-policy questions.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolAsk = "ask_privacy_policy"
	ToolEnd = "end_session"
)

// AskResult is the JSON body of a successful ask_privacy_policy call.
type AskResult struct {
	SessionID    string        `json:"session_id"`
	Response     string        `json:"response"`
	Intent       router.Intent `json:"intent"`
	Cached       bool          `json:"cached"`
	SessionEnded bool          `json:"session_ended"`
}

// Server wraps an MCP server bound to one assistant.
type Server struct {
	assistant *router.Router
	logger    *slog.Logger
	mcp       *server.MCPServer
}

// New registers the assistant tools on a new MCP server.
func New(assistant *router.Router, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: assistant,
		logger:    logger,
		mcp: server.NewMCPServer(
			"policychat",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Ask the privacy policy assistant a question. Reuse the returned session_id for follow-up questions."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The question or message for the assistant"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation to continue. Omit to start a new one."),
		),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool(ToolEnd,
		mcp.WithDescription("End a conversation and discard its history."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Conversation to end"),
		),
	), s.handleEnd)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the tools over stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message parameter is required"), nil
	}

	id := req.GetString("session_id", "")
	if id == "" {
		id, err = s.assistant.StartSession(ctx)
		if err != nil {
			return s.toolError(err, ""), nil
		}
	}

	res, err := s.assistant.HandleTurn(ctx, id, message)
	if err != nil {
		return s.toolError(err, res.Response), nil
	}

	if res.EndSession {
		if err := s.assistant.EndSession(ctx, id); err != nil {
			s.logger.Warn("mcp: end session after goodbye", "session_id", id, "error", err)
		}
	}

	body, err := json.Marshal(AskResult{
		SessionID:    id,
		Response:     res.Response,
		Intent:       res.Intent,
		Cached:       res.Cached,
		SessionEnded: res.EndSession,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	if err := s.assistant.EndSession(ctx, id); err != nil {
		return s.toolError(err, ""), nil
	}
	return mcp.NewToolResultText("session ended"), nil
}

// toolError turns a domain error into a tool error result. Tool errors
// are reported to the calling model, not as protocol failures.
func (s *Server) toolError(err error, fallback string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return mcp.NewToolResultError("session not found or expired; omit session_id to start a new conversation")
	case errors.Is(err, session.ErrLimitReached):
		return mcp.NewToolResultError("too many active conversations, try again later")
	case errors.Is(err, router.ErrEmptyUtterance):
		return mcp.NewToolResultError("message must not be empty")
	case errors.Is(err, store.ErrUnavailable) && fallback != "":
		return mcp.NewToolResultError(fallback)
	default:
		s.logger.Error("mcp: tool call failed", "error", err)
		return mcp.NewToolResultError("the assistant is temporarily unavailable")
	}
}
