package nlp

import (
	"context"
	"strings"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// Classifier wraps a Provider with output sanitisation and a confidence
// floor.
//
// It adds two layers of enforcement on top of the raw LLM output:
//  1. Entity sanitisation: title spans are trimmed and empties dropped, so
//     downstream matching never operates on whitespace artifacts.
//  2. Confidence floor: classifications below the configured floor are
//     downgraded to ActionUnknown rather than propagated, so the pipeline
//     never acts on noise. An action with no extracted titles (other than
//     Unknown) is likewise downgraded — there is nothing to resolve.
//
// Classifier implements Provider and can be used as a drop-in replacement
// wherever a Provider is accepted.
type Classifier struct {
	provider Provider
	floor    float64
}

// NewClassifier returns a Classifier backed by provider. floor is the
// clarification floor from the pipeline configuration; raw results below it
// are mapped to ActionUnknown.
func NewClassifier(provider Provider, floor float64) *Classifier {
	return &Classifier{provider: provider, floor: floor}
}

// Classify calls the underlying Provider, then sanitises and validates the
// returned Intent. Provider errors pass through unchanged so callers can
// distinguish ErrUnavailable from ErrMalformedOutput.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) (*Intent, error) {
	intent, err := c.provider.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	intent.Entities = sanitiseEntities(intent.Entities)

	switch intent.Action {
	case media.ActionAdd, media.ActionRemove, media.ActionSearch, media.ActionStatus:
		// recognised
	default:
		intent.Action = media.ActionUnknown
	}

	switch intent.MediaKind {
	case media.KindMovie, media.KindShow:
		// recognised
	default:
		intent.MediaKind = media.KindAny
	}

	if intent.Confidence < 0 {
		intent.Confidence = 0
	}
	if intent.Confidence > 1 {
		intent.Confidence = 1
	}

	if intent.Action != media.ActionUnknown && (intent.Confidence < c.floor || len(intent.Entities) == 0) {
		intent.Action = media.ActionUnknown
	}

	return intent, nil
}

// sanitiseEntities trims each title span and drops empty ones, preserving
// order.
func sanitiseEntities(entities []string) []string {
	clean := make([]string, 0, len(entities))
	for _, e := range entities {
		if t := strings.TrimSpace(e); t != "" {
			clean = append(clean, t)
		}
	}
	return clean
}
