package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flemzord/policychat/internal/store"
)

// AppendHistory adds a message to the session's history.
func (m *Manager) AppendHistory(ctx context.Context, id string, role Role, text string) error {
	raw, err := json.Marshal(HistoryEntry{Role: role, Message: text, Timestamp: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("session: encode history entry: %w", err)
	}
	if err := m.store.Append(ctx, store.HistoryKey(id), raw, m.ttl); err != nil {
		return fmt.Errorf("session: append history %s: %w", id, err)
	}
	return nil
}

// History returns the session's messages in chronological order.
// Entries that fail to decode are skipped.
func (m *Manager) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	items, err := m.store.List(ctx, store.HistoryKey(id))
	if err != nil {
		return nil, fmt.Errorf("session: history %s: %w", id, err)
	}
	entries := make([]HistoryEntry, 0, len(items))
	for _, raw := range items {
		var e HistoryEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			m.logger.Warn("skipping malformed history entry", "session_id", id, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LastUserQuery returns the most recent user message. With skipCurrent the
// newest user message is passed over, which yields the previous question
// while the current turn is being handled. The bool is false when no such
// message exists.
func (m *Manager) LastUserQuery(ctx context.Context, id string, skipCurrent bool) (string, bool, error) {
	entries, err := m.History(ctx, id)
	if err != nil {
		return "", false, err
	}
	skip := skipCurrent
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role != RoleUser {
			continue
		}
		if skip {
			skip = false
			continue
		}
		return entries[i].Message, true, nil
	}
	return "", false, nil
}
