// Package resolve turns a classified intent into a single unambiguous
// target, or into a clarification question when the evidence does not
// support acting. Mutating intents resolve directly only on a clear best
// match with no question already pending; anything less comes back as a
// question the user must answer.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/enrich"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
	"github.com/bdobrica/Cinematic/internal/cinematic/nlp"
)

// Outcome is the engine's verdict on one intent.
type Outcome string

const (
	// OutcomeResolved means exactly one target matched with high
	// confidence; the action can proceed.
	OutcomeResolved Outcome = "resolved"
	// OutcomeNeedsClarification means the user must pick a candidate or
	// confirm the proposed one before anything happens.
	OutcomeNeedsClarification Outcome = "needs_clarification"
	// OutcomeRejected means no candidate was credible enough to act on.
	OutcomeRejected Outcome = "rejected"
)

// Decision is what the engine hands back to the pipeline.
type Decision struct {
	Outcome    Outcome
	Action     media.ActionKind
	Target     *media.CandidateRecord
	Candidates []media.CandidateRecord
	Question   string
	Reason     string
}

// Config holds the decision thresholds. See config.PipelineConfig for the
// operator-facing knobs these come from.
type Config struct {
	HighConfidence     float64
	ClarificationFloor float64
	MinMargin          float64
	MaxCandidates      int
}

// Engine gathers candidates from the catalog and the metadata provider,
// scores them against the requested entity, and decides.
type Engine struct {
	catalog  catalog.Client
	enricher enrich.Enricher
	cfg      Config
	logger   *slog.Logger
}

func NewEngine(cat catalog.Client, enricher enrich.Enricher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	return &Engine{catalog: cat, enricher: enricher, cfg: cfg, logger: logger}
}

// Resolve decides what to do with one intent. pendingAmbiguity reports
// whether the sender already had an open clarification when this intent
// arrived; a mutating intent then needs an explicit confirmation even on a
// clear best match. The returned Decision is always non-nil on a nil error.
func (e *Engine) Resolve(ctx context.Context, intent *nlp.Intent, pendingAmbiguity bool) (*Decision, error) {
	if intent.Action == media.ActionUnknown || len(intent.Entities) == 0 {
		return &Decision{
			Outcome: OutcomeRejected,
			Action:  intent.Action,
			Reason:  "I couldn't work out what you want me to do.",
		}, nil
	}

	entity := intent.Entities[0]
	candidates, err := e.gather(ctx, entity, intent.MediaKind)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].MatchScore = scoreCandidate(candidates[i], entity, intent.Year)
	}
	sortCandidates(candidates)

	if len(candidates) == 0 || candidates[0].MatchScore < e.cfg.ClarificationFloor {
		return &Decision{
			Outcome: OutcomeRejected,
			Action:  intent.Action,
			Reason:  fmt.Sprintf("I couldn't find anything matching %q.", entity),
		}, nil
	}

	top := candidates[0]
	margin := top.MatchScore
	if len(candidates) > 1 {
		margin = top.MatchScore - candidates[1].MatchScore
	}

	e.logger.Debug("resolution scored",
		"entity", entity,
		"action", string(intent.Action),
		"candidates", len(candidates),
		"top_score", top.MatchScore,
		"margin", margin)

	unambiguous := top.MatchScore >= e.cfg.HighConfidence && margin >= e.cfg.MinMargin

	if unambiguous {
		// A mutation arriving on top of an open question confirms first;
		// otherwise a clear best match proceeds for every action kind.
		if intent.Action.Mutating() && pendingAmbiguity {
			return &Decision{
				Outcome:    OutcomeNeedsClarification,
				Action:     intent.Action,
				Candidates: []media.CandidateRecord{top},
				Question:   confirmQuestion(intent.Action, top),
			}, nil
		}
		return &Decision{Outcome: OutcomeResolved, Action: intent.Action, Target: &top}, nil
	}

	shortlist := candidates
	if len(shortlist) > e.cfg.MaxCandidates {
		shortlist = shortlist[:e.cfg.MaxCandidates]
	}
	return &Decision{
		Outcome:    OutcomeNeedsClarification,
		Action:     intent.Action,
		Candidates: shortlist,
		Question:   pickQuestion(intent.Action, entity, shortlist),
	}, nil
}

// gather pulls candidates from both sources, deduplicating on provider ID.
// One source failing degrades to the other; only a total blackout is an
// error.
func (e *Engine) gather(ctx context.Context, entity string, kind media.Kind) ([]media.CandidateRecord, error) {
	var candidates []media.CandidateRecord
	var catalogErr, enrichErr error

	entries, catalogErr := e.catalog.Search(ctx, entity, kind)
	if catalogErr != nil {
		e.logger.Warn("catalog search failed, degrading to external lookup", "error", catalogErr)
	}
	for _, entry := range entries {
		candidates = append(candidates, media.CandidateRecord{
			ExternalID: entry.ExternalID,
			Title:      entry.Title,
			Year:       entry.Year,
			Kind:       entry.Kind,
			Source:     media.SourceCatalog,
			Overview:   entry.Overview,
		})
	}

	if e.enricher != nil {
		found, err := e.enricher.Lookup(ctx, entity, kind, 0)
		enrichErr = err
		if err != nil {
			e.logger.Warn("metadata lookup failed, continuing on catalog results", "error", err)
		}
		candidates = appendNew(candidates, found)
	}

	if len(candidates) == 0 && catalogErr != nil && (e.enricher == nil || enrichErr != nil) {
		return nil, fmt.Errorf("resolve: no candidate source reachable: %w", catalogErr)
	}
	return candidates, nil
}

// appendNew adds external candidates not already known to the catalog set.
// The catalog copy wins duplicates so library state stays authoritative.
func appendNew(candidates, found []media.CandidateRecord) []media.CandidateRecord {
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[candidateKey(c)] = true
	}
	for _, c := range found {
		if seen[candidateKey(c)] {
			continue
		}
		seen[candidateKey(c)] = true
		candidates = append(candidates, c)
	}
	return candidates
}

func candidateKey(c media.CandidateRecord) string {
	return fmt.Sprintf("%s:%d", c.Kind, c.ExternalID)
}

// sortCandidates orders by score, then catalog before external, then newer
// release first. The ordering is total so equal inputs always produce the
// same shortlist.
func sortCandidates(candidates []media.CandidateRecord) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.Source != b.Source {
			return a.Source == media.SourceCatalog
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.ExternalID < b.ExternalID
	})
}

func confirmQuestion(action media.ActionKind, c media.CandidateRecord) string {
	verb := "add"
	if action == media.ActionRemove {
		verb = "remove"
	}
	return fmt.Sprintf("Should I %s %s? (yes/no)", verb, c.Label())
}

func pickQuestion(action media.ActionKind, entity string, candidates []media.CandidateRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found several matches for %q:\n", entity)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Label())
	}
	b.WriteString("Which one did you mean? (reply with a number, or \"cancel\")")
	return b.String()
}
