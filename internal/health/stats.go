package health

import (
	"context"
	"fmt"
)

// Service names under which pkg/app publishes health components.
const (
	ServiceName      = "assistant.health"
	StatsServiceName = "assistant.stats"
)

// SessionCounter counts live sessions.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// Stats is the operational summary returned by `policychat stats` and
// GET /v1/stats.
type Stats struct {
	ActiveSessions int      `json:"active_sessions"`
	Store          string   `json:"store"`
	Retriever      string   `json:"retriever"`
	Providers      []string `json:"providers"`
}

// StatsSource collects Stats. The backend names are the configured
// module IDs.
type StatsSource struct {
	Sessions  SessionCounter
	Store     string
	Retriever string
	Providers []string
}

// Collect counts live sessions and returns the summary.
func (s *StatsSource) Collect(ctx context.Context) (Stats, error) {
	n, err := s.Sessions.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("health: stats: %w", err)
	}
	return Stats{
		ActiveSessions: n,
		Store:          s.Store,
		Retriever:      s.Retriever,
		Providers:      append([]string(nil), s.Providers...),
	}, nil
}
