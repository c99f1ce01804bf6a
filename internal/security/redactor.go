// Package security provides log redaction, audit events, request rate
// limiting and input validation for the assistant's outer surfaces.
package security

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// RedactorServiceName is the AppContext service under which the process
// redactor is published. Modules add the secrets they load to it.
const RedactorServiceName = "security.redactor"

// secretKeyPattern matches map keys that likely hold secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|api_key|apikey|credential)`)

// Redactor masks secrets in strings and maps. Known key formats are
// matched by pattern; values only known at runtime (configured API keys,
// the gateway token) are matched literally.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern adds a compiled pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a secret value to mask wherever it appears. Values
// shorter than four bytes are ignored to avoid masking ordinary words.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.literals, secret) {
		r.literals = append(r.literals, secret)
	}
}

// Redact replaces every pattern match and literal in s with
// RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// RedactMap walks a decoded YAML or JSON document in place. String values
// under secret-looking keys are replaced outright; every other string is
// passed through Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	case string:
		return r.Redact(val)
	}
	return v
}

// DefaultPatterns returns patterns for the credentials the assistant
// handles: provider API keys, bearer tokens and passwords embedded in
// connection URLs.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic before OpenAI: both start with sk-.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
		regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9\-_]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]{8,}=*`),
		regexp.MustCompile(`(?i)(redis|rediss)://[^:@/\s]*:[^@/\s]+@`),
	}
}
