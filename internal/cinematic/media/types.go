// Package media defines the shared vocabulary of the Cinematic pipeline:
// what kind of item the user is talking about, what action they want taken,
// and the candidate records that flow between the catalog, the enricher,
// the disambiguation engine, and the executor.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind distinguishes movies from series.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
	// KindAny is used as a lookup hint when the user's message did not make
	// the media type clear.
	KindAny Kind = ""
)

// ActionKind is the catalog operation a message requests.
type ActionKind string

const (
	ActionAdd     ActionKind = "add"
	ActionRemove  ActionKind = "remove"
	ActionSearch  ActionKind = "search"
	ActionStatus  ActionKind = "status"
	ActionUnknown ActionKind = "unknown"
)

// Mutating reports whether the action changes the catalog. Mutating actions
// are never executed from a raw classification — they require either a
// high-confidence unambiguous resolution or an explicit user selection.
func (k ActionKind) Mutating() bool {
	return k == ActionAdd || k == ActionRemove
}

// CandidateSource records where a candidate was discovered.
type CandidateSource string

const (
	// SourceCatalog means the candidate came from the media server itself
	// (Radarr/Sonarr). Catalog candidates win score ties because acting on
	// an item the server already knows about is the cheaper, safer option.
	SourceCatalog CandidateSource = "catalog"
	// SourceExternal means the candidate came from the metadata source (TMDB).
	SourceExternal CandidateSource = "external"
)

// CandidateRecord is one possible referent for an ambiguous title.
// Candidates are ephemeral: they are generated per resolution attempt and
// never cached across messages except inside an active clarification session.
type CandidateRecord struct {
	// ExternalID is the provider ID (TMDB ID for movies, TVDB ID for shows).
	ExternalID int64
	Title      string
	Year       int
	Kind       Kind
	Source     CandidateSource
	// MatchScore is the 0–1 textual/recency similarity against the user's
	// phrasing, computed by the disambiguation engine.
	MatchScore float64
	// Overview is a short synopsis, used in clarification prompts.
	Overview string
}

// Label returns the human-readable form used in clarification prompts,
// e.g. "The Matrix (1999)".
func (c CandidateRecord) Label() string {
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", c.Title, c.Year)
	}
	return c.Title
}

// ResolvedAction is a fully disambiguated, safe-to-execute operation.
// It is produced only when disambiguation succeeds unambiguously or the user
// explicitly selected a candidate, and is consumed exactly once by the
// executor (duplicate deliveries are absorbed by the idempotency key).
type ResolvedAction struct {
	Kind        ActionKind
	Target      CandidateRecord
	RequestedBy string
	// IdempotencyKey is a deterministic digest of (kind, target, requester).
	// Re-delivery of the same resolved action therefore never double-applies.
	IdempotencyKey string
}

// NewResolvedAction builds a ResolvedAction with its idempotency key filled in.
func NewResolvedAction(kind ActionKind, target CandidateRecord, requestedBy string) ResolvedAction {
	return ResolvedAction{
		Kind:           kind,
		Target:         target,
		RequestedBy:    requestedBy,
		IdempotencyKey: IdempotencyKey(kind, target.Kind, target.ExternalID, requestedBy),
	}
}

// IdempotencyKey derives the deterministic deduplication key for an action.
// Two actions with the same kind, target, and requester always produce the
// same key regardless of how the target was phrased or discovered.
func IdempotencyKey(action ActionKind, kind Kind, externalID int64, requestedBy string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s", action, kind, externalID, requestedBy))
	return hex.EncodeToString(sum[:16])
}
