// Package pipeline wires chat messages through classification, resolution,
// confirmation, and execution. Messages from the same user in the same room
// are processed strictly in order; independent pairs run in parallel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Cinematic/common/trace"
	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/executor"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
	"github.com/bdobrica/Cinematic/internal/cinematic/nlp"
	"github.com/bdobrica/Cinematic/internal/cinematic/resolve"
	"github.com/bdobrica/Cinematic/internal/cinematic/session"
)

const processTimeout = 2 * time.Minute

// Message is one inbound chat message.
type Message struct {
	RoomID string
	Sender string
	Body   string
}

// Responder delivers a reply back to the room the message came from.
type Responder func(ctx context.Context, roomID, text string) error

// Auditor records executed and failed mutations. The zero-value pipeline
// audits nothing.
type Auditor interface {
	Record(ctx context.Context, actor, action, target, result string) error
}

// Resolver is the decision stage. Satisfied by *resolve.Engine.
type Resolver interface {
	Resolve(ctx context.Context, intent *nlp.Intent, pendingAmbiguity bool) (*resolve.Decision, error)
}

// Runner executes resolved actions. Satisfied by *executor.Executor.
type Runner interface {
	Execute(ctx context.Context, action media.ResolvedAction) (*executor.Result, error)
}

// Pipeline owns the per-message flow. Construct with New; HandleMessage is
// safe for concurrent use.
type Pipeline struct {
	classifier nlp.Provider
	resolver   Resolver
	runner     Runner
	sessions   *session.Store
	limiter    *nlp.RateLimiter
	audit      Auditor
	respond    Responder
	history    *historyTracker
	workers    *workGroup
	logger     *slog.Logger
}

// Options collects the pipeline's collaborators.
type Options struct {
	Classifier nlp.Provider
	Resolver   Resolver
	Runner     Runner
	Sessions   *session.Store
	Limiter    *nlp.RateLimiter
	Audit      Auditor
	Respond    Responder
	Logger     *slog.Logger
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.DefaultTimeout)
	}
	return &Pipeline{
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		runner:     opts.Runner,
		sessions:   sessions,
		limiter:    opts.Limiter,
		audit:      opts.Audit,
		respond:    opts.Respond,
		history:    newHistoryTracker(),
		workers:    newWorkGroup(),
		logger:     logger,
	}
}

// HandleMessage enqueues a message for processing and returns immediately.
// Ordering is preserved per (room, sender).
func (p *Pipeline) HandleMessage(msg Message) {
	key := msg.RoomID + ":" + msg.Sender
	p.workers.Submit(key, func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		ctx = trace.WithTraceID(ctx, trace.GenerateID())
		p.process(ctx, msg)
	})
}

// Drain blocks until all queued messages have been processed. Used during
// shutdown and in tests.
func (p *Pipeline) Drain() {
	p.workers.Wait()
}

func (p *Pipeline) process(ctx context.Context, msg Message) {
	logger := p.logger.With(
		"trace_id", trace.FromContext(ctx),
		"room", msg.RoomID,
		"sender", msg.Sender,
	)

	p.sessions.Prune()
	p.history.Observe(msg.RoomID, msg.Sender, "user", msg.Body)

	// A pending question gets first claim on the message. Deterministic
	// parsing runs before any model call so "2" or "yes" never costs a
	// classification.
	pending := p.sessions.Get(msg.RoomID, msg.Sender)
	if pending != nil {
		answer := resolve.ParseAnswer(msg.Body, pending.Candidates)
		switch answer.Kind {
		case resolve.AnswerCancelled:
			p.sessions.End(msg.RoomID, msg.Sender, pending.ID)
			logger.Info("clarification cancelled", "session", pending.ShortID())
			p.reply(ctx, msg.RoomID, msg.Sender, "Okay, I won't do anything.")
			return
		case resolve.AnswerSelected:
			p.sessions.End(msg.RoomID, msg.Sender, pending.ID)
			selected := pending.Candidates[answer.Selected]
			logger.Info("clarification answered",
				"session", pending.ShortID(),
				"selected", selected.Label())
			p.execute(ctx, msg, pending.Action, selected, logger)
			return
		}
		// Unparsed: maybe a fresh request, maybe noise. Classification
		// decides below.
	}

	if p.limiter != nil && !p.limiter.Allow(msg.Sender) {
		logger.Warn("sender rate limited")
		p.reply(ctx, msg.RoomID, msg.Sender, nlp.RateLimitReply)
		return
	}

	intent, err := p.classifier.Classify(ctx, nlp.ClassifyRequest{
		Message:       msg.Body,
		Sender:        msg.Sender,
		RecentContext: p.recentContext(msg, pending),
	})
	if err != nil {
		logger.Error("classification failed", "error", err)
		p.reply(ctx, msg.RoomID, msg.Sender, "I can't understand requests right now. Please try again in a bit.")
		return
	}

	if intent.Action == media.ActionUnknown {
		if pending != nil {
			// Not an answer and not a new request: ask again.
			p.reply(ctx, msg.RoomID, msg.Sender, pending.Question)
			return
		}
		text := intent.Reply
		if text == "" {
			text = "I didn't catch that. Ask me to search, add, remove, or check on a movie or show."
		}
		p.reply(ctx, msg.RoomID, msg.Sender, text)
		return
	}

	// A confident new request supersedes whatever question was pending. The
	// resolver still learns a question was open, so a mutating intent sent
	// over one gets confirmed instead of applied on the spot.
	superseded := pending != nil
	if superseded {
		p.sessions.End(msg.RoomID, msg.Sender, pending.ID)
		logger.Info("pending question superseded", "session", pending.ShortID())
	}

	logger.Info("intent classified",
		"action", string(intent.Action),
		"entities", strings.Join(intent.Entities, ", "),
		"confidence", intent.Confidence)

	decision, err := p.resolver.Resolve(ctx, intent, superseded)
	if err != nil {
		logger.Error("resolution failed", "error", err)
		p.reply(ctx, msg.RoomID, msg.Sender, "The library isn't reachable right now. Please try again later.")
		return
	}

	switch decision.Outcome {
	case resolve.OutcomeRejected:
		p.reply(ctx, msg.RoomID, msg.Sender, decision.Reason)

	case resolve.OutcomeNeedsClarification:
		sess := p.sessions.Begin(msg.RoomID, msg.Sender, decision.Action, decision.Candidates, decision.Question)
		logger.Info("clarification requested",
			"session", sess.ShortID(),
			"candidates", len(decision.Candidates))
		p.reply(ctx, msg.RoomID, msg.Sender, decision.Question)

	case resolve.OutcomeResolved:
		p.execute(ctx, msg, decision.Action, *decision.Target, logger)
	}
}

func (p *Pipeline) execute(ctx context.Context, msg Message, action media.ActionKind, target media.CandidateRecord, logger *slog.Logger) {
	resolved := media.NewResolvedAction(action, target, msg.Sender)

	result, err := p.runner.Execute(ctx, resolved)
	if err != nil {
		p.recordAudit(ctx, msg.Sender, resolved, "failed", logger)
		if errors.Is(err, catalog.ErrUnavailable) {
			p.reply(ctx, msg.RoomID, msg.Sender,
				fmt.Sprintf("I couldn't %s %s — the media server isn't responding. Nothing was changed; try again later.", action, target.Label()))
			return
		}
		logger.Error("execution failed", "error", err)
		p.reply(ctx, msg.RoomID, msg.Sender,
			fmt.Sprintf("Something went wrong while trying to %s %s. Nothing was changed.", action, target.Label()))
		return
	}

	if resolved.Kind.Mutating() && !result.Deduped {
		p.recordAudit(ctx, msg.Sender, resolved, string(result.Outcome), logger)
	}
	p.reply(ctx, msg.RoomID, msg.Sender, renderResult(action, result))
}

func (p *Pipeline) recordAudit(ctx context.Context, actor string, resolved media.ResolvedAction, outcome string, logger *slog.Logger) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, actor, string(resolved.Kind), resolved.Target.Label(), outcome); err != nil {
		// Audit loss is logged, never user-visible.
		logger.Error("audit write failed", "error", err)
	}
}

func (p *Pipeline) recentContext(msg Message, pending *session.Session) []nlp.HistoryMessage {
	history := p.recentHistoryExcludingCurrent(msg)
	if pending != nil {
		history = append(history, nlp.HistoryMessage{Role: "assistant", Content: pending.Question})
	}
	return history
}

// recentHistoryExcludingCurrent drops the line Observe just added for this
// message, since the classifier receives it separately.
func (p *Pipeline) recentHistoryExcludingCurrent(msg Message) []nlp.HistoryMessage {
	history := p.history.Recent(msg.RoomID, msg.Sender)
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Content == msg.Body {
		history = history[:n-1]
	}
	return history
}

func (p *Pipeline) reply(ctx context.Context, roomID, sender, text string) {
	p.history.Observe(roomID, sender, "assistant", text)
	if p.respond == nil {
		return
	}
	if err := p.respond(ctx, roomID, text); err != nil {
		p.logger.Error("reply delivery failed",
			"trace_id", trace.FromContext(ctx),
			"room", roomID,
			"error", err)
	}
}
