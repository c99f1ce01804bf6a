// Package router runs one conversational turn: it classifies the
// utterance into an intent, consults the session's semantic cache, and
// dispatches to the handler for that intent.
package router

import "errors"

var (
	// ErrClassificationAmbiguous indicates the classifier reply named no
	// intent. The turn continues as IntentUnclear.
	ErrClassificationAmbiguous = errors.New("router: ambiguous classification")

	// ErrNoContext indicates retrieval found no passage under the
	// relevance cutoff.
	ErrNoContext = errors.New("router: no relevant context")

	// ErrEmptyUtterance indicates a turn with no text.
	ErrEmptyUtterance = errors.New("router: empty utterance")
)
