// Package executor carries out resolved actions against the catalog. It is
// the only place mutations happen, and it makes them safe to repeat: the
// library state is re-checked immediately before acting, and identical
// requests inside the dedup window return the recorded outcome instead of
// acting twice.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/Cinematic/common/retry"
	"github.com/bdobrica/Cinematic/common/trace"
	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// OutcomeKind states what execution did.
type OutcomeKind string

const (
	// OutcomeExecuted means the catalog was changed, or a report produced.
	OutcomeExecuted OutcomeKind = "executed"
	// OutcomeNoOp means the library was already in the requested state.
	OutcomeNoOp OutcomeKind = "noop"
)

// Result is the user-reportable outcome of one action.
type Result struct {
	Outcome OutcomeKind
	// Message is a short human sentence describing what happened.
	Message string
	// Entries carries catalog state for search and status reports.
	Entries []catalog.Entry
	// Deduped marks a result replayed from the idempotency window rather
	// than freshly executed.
	Deduped bool
}

// Config tunes execution behaviour.
type Config struct {
	// MaxRetries bounds attempts against a transiently failing catalog.
	MaxRetries int
	// DedupWindow is how long a mutation's outcome is replayed for
	// identical requests.
	DedupWindow time.Duration
}

// Executor executes resolved actions. Safe for concurrent use.
type Executor struct {
	catalog catalog.Client
	retry   retry.Config
	dedup   *dedupCache
	logger  *slog.Logger
}

func New(cat catalog.Client, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := retry.DefaultConfig
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}
	retryCfg.Retryable = func(err error) bool {
		return errorsIsUnavailable(err)
	}
	window := cfg.DedupWindow
	if window <= 0 {
		window = 3 * time.Minute
	}
	return &Executor{
		catalog: cat,
		retry:   retryCfg,
		dedup:   newDedupCache(window),
		logger:  logger,
	}
}

// Execute runs one resolved action. A returned error means the action could
// not be completed; mutations that fail part-way are safe to retry because
// every mutation re-checks library state first.
func (e *Executor) Execute(ctx context.Context, action media.ResolvedAction) (*Result, error) {
	logger := e.logger.With(
		"trace_id", trace.FromContext(ctx),
		"action", string(action.Kind),
		"target", action.Target.Label(),
		"requested_by", action.RequestedBy,
	)

	if action.Kind.Mutating() {
		if cached, ok := e.dedup.get(action.IdempotencyKey); ok {
			logger.Info("duplicate request, replaying recorded outcome", "outcome", string(cached.Outcome))
			replay := *cached
			replay.Deduped = true
			return &replay, nil
		}
	}

	var result *Result
	err := retry.Do(ctx, e.retry, func(attempt int) error {
		var runErr error
		result, runErr = e.run(ctx, action)
		return runErr
	})
	if err != nil {
		logger.Error("action failed", "error", err)
		return nil, fmt.Errorf("executor: %s %s: %w", action.Kind, action.Target.Label(), err)
	}

	if action.Kind.Mutating() {
		e.dedup.put(action.IdempotencyKey, result)
	}
	logger.Info("action completed", "outcome", string(result.Outcome))
	return result, nil
}

func (e *Executor) run(ctx context.Context, action media.ResolvedAction) (*Result, error) {
	switch action.Kind {
	case media.ActionSearch:
		return e.search(ctx, action.Target)
	case media.ActionStatus:
		return e.status(ctx, action.Target)
	case media.ActionAdd:
		return e.add(ctx, action.Target)
	case media.ActionRemove:
		return e.remove(ctx, action.Target)
	default:
		return nil, fmt.Errorf("executor: unsupported action %q", action.Kind)
	}
}

func (e *Executor) search(ctx context.Context, target media.CandidateRecord) (*Result, error) {
	entries, err := e.catalog.Search(ctx, target.Title, target.Kind)
	if err != nil {
		return nil, err
	}
	return &Result{
		Outcome: OutcomeExecuted,
		Message: fmt.Sprintf("Found %d result(s) for %q.", len(entries), target.Title),
		Entries: entries,
	}, nil
}

func (e *Executor) status(ctx context.Context, target media.CandidateRecord) (*Result, error) {
	entry, err := e.catalog.GetStatus(ctx, target.Kind, target.ExternalID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Outcome: OutcomeExecuted,
		Message: fmt.Sprintf("%s is %s.", target.Label(), statusPhrase(entry.Status)),
		Entries: []catalog.Entry{*entry},
	}, nil
}

func (e *Executor) add(ctx context.Context, target media.CandidateRecord) (*Result, error) {
	entry, err := e.catalog.GetStatus(ctx, target.Kind, target.ExternalID)
	if err != nil {
		return nil, err
	}
	if entry.Status != catalog.StatusMissing {
		return &Result{
			Outcome: OutcomeNoOp,
			Message: fmt.Sprintf("%s is already %s.", target.Label(), statusPhrase(entry.Status)),
		}, nil
	}

	if err := e.catalog.Add(ctx, target.Kind, target.ExternalID); err != nil {
		return nil, err
	}
	return &Result{
		Outcome: OutcomeExecuted,
		Message: fmt.Sprintf("Added %s and started searching for it.", target.Label()),
	}, nil
}

func (e *Executor) remove(ctx context.Context, target media.CandidateRecord) (*Result, error) {
	entry, err := e.catalog.GetStatus(ctx, target.Kind, target.ExternalID)
	if err != nil {
		return nil, err
	}
	if entry.Status == catalog.StatusMissing {
		return &Result{
			Outcome: OutcomeNoOp,
			Message: fmt.Sprintf("%s is not in the library.", target.Label()),
		}, nil
	}

	if err := e.catalog.Remove(ctx, target.Kind, target.ExternalID); err != nil {
		return nil, err
	}
	return &Result{
		Outcome: OutcomeExecuted,
		Message: fmt.Sprintf("Removed %s and its files.", target.Label()),
	}, nil
}

func statusPhrase(status catalog.Status) string {
	switch status {
	case catalog.StatusPresent:
		return "in the library"
	case catalog.StatusRequested:
		return "requested and waiting for a download"
	default:
		return "not in the library"
	}
}
