package router

import (
	"errors"

	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/store"
)

// Fixed replies. These are the only user-visible failure texts.
const (
	msgServiceUnavailable = "We're sorry, the assistant is temporarily unavailable. Please try again in a few minutes."
	msgSearchUnavailable  = "We're sorry, we are temporarily unable to search our privacy policy. Please try again shortly."
	msgApology            = "I apologize, but I'm having trouble answering right now. Please try asking again in a moment."
	msgFollowupApology    = "I apologize, but I'm having trouble retrieving more details right now. Please try again in a moment."
	msgNoContext          = "I don't have specific information about that topic in our privacy policy. Feel free to ask about the data we collect, cookies, or your privacy rights."
	msgNoMoreContext      = "I don't have additional information on that topic in our privacy policy. Feel free to ask a more specific question."
	msgGreeting           = "Hello! I'm here to help with any questions about our privacy policy. What would you like to know?"
	msgGoodbye            = "Thank you for your questions! If you need anything else about our privacy practices, feel free to come back anytime."
	msgClarify            = "I'm not sure I understand your question. Could you please rephrase it? I can help with questions about our privacy policy, data collection, cookies, and your rights."
)

// fallbackRule maps an error kind, optionally narrowed to one intent, to a
// fixed reply. Rules are checked in order; an empty intent matches any.
type fallbackRule struct {
	kind    string
	err     error
	intent  Intent
	message string
}

var fallbackTable = []fallbackRule{
	{"store", store.ErrUnavailable, "", msgServiceUnavailable},
	{"retrieval", retrieval.ErrRetrieval, "", msgSearchUnavailable},
	{"no_context", ErrNoContext, IntentFollowup, msgNoMoreContext},
	{"no_context", ErrNoContext, "", msgNoContext},
	{"generation", provider.ErrGeneration, IntentGreeting, msgGreeting},
	{"generation", provider.ErrGeneration, IntentGoodbye, msgGoodbye},
	{"generation", provider.ErrGeneration, IntentUnclear, msgClarify},
	{"generation", provider.ErrGeneration, IntentFollowup, msgFollowupApology},
	{"generation", provider.ErrGeneration, "", msgApology},
}

// Fallback returns the fixed reply for err during a turn of the given
// intent, and the failure kind used for metrics. Unknown errors get the
// generic apology.
func Fallback(intent Intent, err error) (message, kind string) {
	for _, r := range fallbackTable {
		if errors.Is(err, r.err) && (r.intent == "" || r.intent == intent) {
			return r.message, r.kind
		}
	}
	return msgApology, "unknown"
}
