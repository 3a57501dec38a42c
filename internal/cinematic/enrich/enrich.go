// Package enrich widens candidate discovery beyond the library by querying
// an external metadata provider. Enrichment is best-effort: when the provider
// is down, resolution continues on catalog results alone.
package enrich

import (
	"context"
	"errors"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// ErrUnavailable is returned when the metadata provider cannot be reached.
// Callers treat it as a degradation signal, never as a hard stop.
var ErrUnavailable = errors.New("enrich: metadata provider unavailable")

// Enricher looks up candidates for a free-text title. An empty result is a
// valid answer and is not an error.
type Enricher interface {
	Lookup(ctx context.Context, title string, kind media.Kind, year int) ([]media.CandidateRecord, error)
}
