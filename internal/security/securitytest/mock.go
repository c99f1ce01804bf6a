// Package securitytest provides test doubles for the security package.
package securitytest

import (
	"sync"

	"github.com/flemzord/policychat/internal/security"
)

// NewTestRedactor returns a Redactor with no patterns, so test fixtures
// that look like keys pass through unchanged. Literals can still be added.
func NewTestRedactor() *security.Redactor {
	return &security.Redactor{}
}

// AuditRecorder collects audit events for assertions.
type AuditRecorder struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

// Logger returns an AuditLogger that records into r.
func (r *AuditRecorder) Logger() *security.AuditLogger {
	return security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		},
	})
}

// Events returns the recorded events of the given type, or all events
// when typ is empty.
func (r *AuditRecorder) Events(typ security.EventType) []security.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []security.AuditEvent
	for _, e := range r.events {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
