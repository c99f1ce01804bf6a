package router

import (
	"fmt"
	"strings"
)

// Intent is the classification of a single turn.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentQuery    Intent = "query"
	IntentFollowup Intent = "followup"
	IntentGoodbye  Intent = "goodbye"
	IntentUnclear  Intent = "unclear"
)

// Intents lists every intent in classification order.
var Intents = []Intent{IntentGreeting, IntentFollowup, IntentQuery, IntentGoodbye, IntentUnclear}

// label is the token the classifier is asked to answer with.
func (i Intent) label() string {
	return strings.ToUpper(string(i))
}

// Cacheable reports whether answers to this intent go through the cache.
func (i Intent) Cacheable() bool {
	return i == IntentQuery || i == IntentFollowup
}

// ParseIntent maps a classifier reply to an intent. The first label found
// in the reply wins, checked in the order of Intents, so "GREETING" beats
// "QUERY" when a chatty model names both.
func ParseIntent(reply string) (Intent, error) {
	upper := strings.ToUpper(reply)
	for _, intent := range Intents {
		if strings.Contains(upper, intent.label()) {
			return intent, nil
		}
	}
	return IntentUnclear, fmt.Errorf("%w: %q", ErrClassificationAmbiguous, reply)
}
