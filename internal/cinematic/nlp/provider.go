// Package nlp provides the natural-language classification layer for
// Cinematic.
//
// The NLP layer sits between the raw chat message and the disambiguation
// engine. Its sole responsibility is translation: convert a free-form
// sentence into a structured Intent (action kind + title spans + confidence)
// that the resolution pipeline can act on.
//
// Safety invariants:
//   - The LLM only proposes intents; it never executes catalog operations.
//   - Every mutation still flows through disambiguation → confirmation →
//     idempotent execution.
//   - Low-confidence output is downgraded to ActionUnknown so the pipeline
//     never acts on noise.
//   - Rate limiting bounds token spend per sender.
package nlp

import (
	"context"
	"errors"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// ErrUnavailable is returned by a Provider when the underlying language-model
// call errors out or times out. Callers fall back to a fixed apology reply
// and must not touch the catalog.
var ErrUnavailable = errors.New("nlp: classifier unavailable")

// ErrMalformedOutput is returned by a Provider when the LLM returns a
// structurally valid HTTP response whose body cannot be interpreted as an
// intent payload (JSON parse failure, schema violation). Callers should
// surface a clarification prompt so the user knows to rephrase.
var ErrMalformedOutput = errors.New("nlp: malformed response from LLM")

// HistoryMessage is a single prior turn in the conversation, injected into
// the LLM context window so follow-ups like "the second one" resolve
// relative to what was just asked.
type HistoryMessage struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// ClassifyRequest is the input to a single classification call.
type ClassifyRequest struct {
	// Message is the raw text sent by the user.
	Message string

	// RecentContext contains the trailing portion of the pending
	// clarification session (the question asked and the user's earlier
	// message), if any. May be nil for a fresh conversation.
	RecentContext []HistoryMessage

	// Sender is the chat user ID of the sender. Present for traceability;
	// the system prompt instructs the model to ignore it.
	Sender string
}

// Intent is the structured guess at what catalog action a message requests.
// It is produced once per message, is immutable, and is consumed by the
// disambiguation engine — never by the executor directly.
type Intent struct {
	// Action is the requested catalog operation.
	Action media.ActionKind

	// Entities are the free-text title spans extracted from the message,
	// in the order they appeared.
	Entities []string

	// MediaKind is the movie/show hint, when the phrasing made it clear
	// ("the show Severance" vs "the matrix").
	MediaKind media.Kind

	// Year is an optional release-year hint ("the 1999 one").
	Year int

	// Confidence is the model's 0–1 certainty in this interpretation.
	Confidence float64

	// Reply is an optional conversational reply composed by the model,
	// used only when Action is ActionUnknown (e.g. a polite "I can help
	// you add or remove movies and shows" for off-topic messages).
	Reply string
}

// Provider classifies free-form user messages into structured intents.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// A Provider that cannot reach its backend returns an error wrapping
// ErrUnavailable; one that gets uninterpretable output returns an error
// wrapping ErrMalformedOutput.
type Provider interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Intent, error)
}
