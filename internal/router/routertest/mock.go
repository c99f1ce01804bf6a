// Package routertest provides a scripted language model for router tests.
package routertest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/flemzord/policychat/internal/provider"
)

// DefaultAnswer is returned for answer requests when Answer is nil. It is
// long enough to be cached.
const DefaultAnswer = "We use cookies to remember your preferences and to understand how our website is used."

// ScriptedGenerator is a provider.TextGenerator that tells the three kinds
// of request apart: intent classification, cache similarity judgments and
// answers. Unset funcs use defaults: classification replies QUERY, the
// judge replies NONE and answers are DefaultAnswer. Safe for concurrent use.
type ScriptedGenerator struct {
	Classify func(prompt string) (string, error)
	Judge    func(prompt string) (string, error)
	Answer   func(ctx context.Context, req provider.TextRequest) (string, error)

	mu            sync.Mutex
	classifyCalls int
	judgeCalls    int
	answers       []provider.TextRequest
}

var _ provider.TextGenerator = (*ScriptedGenerator)(nil)

// GenerateText implements provider.TextGenerator.
func (g *ScriptedGenerator) GenerateText(ctx context.Context, req provider.TextRequest) (string, error) {
	switch {
	case req.Role == provider.RoleInternal && strings.Contains(req.System, "NONE"):
		g.mu.Lock()
		g.judgeCalls++
		g.mu.Unlock()
		if g.Judge == nil {
			return "NONE", nil
		}
		return g.Judge(req.Prompt)

	case req.Role == provider.RoleInternal:
		g.mu.Lock()
		g.classifyCalls++
		g.mu.Unlock()
		if g.Classify == nil {
			return "QUERY", nil
		}
		return g.Classify(req.Prompt)

	default:
		g.mu.Lock()
		g.answers = append(g.answers, req)
		g.mu.Unlock()
		if g.Answer == nil {
			return DefaultAnswer, nil
		}
		return g.Answer(ctx, req)
	}
}

// ClassifyCalls returns the number of classification requests.
func (g *ScriptedGenerator) ClassifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.classifyCalls
}

// JudgeCalls returns the number of similarity requests.
func (g *ScriptedGenerator) JudgeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.judgeCalls
}

// Answers returns a copy of the answer requests.
func (g *ScriptedGenerator) Answers() []provider.TextRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]provider.TextRequest, len(g.answers))
	copy(cp, g.answers)
	return cp
}

// IntentByUtterance returns a Classify func replying with the label mapped
// to the utterance quoted in the prompt, or UNCLEAR when none is.
func IntentByUtterance(labels map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		for utterance, label := range labels {
			if strings.Contains(prompt, strconv.Quote(utterance)) {
				return label, nil
			}
		}
		return "UNCLEAR", nil
	}
}
