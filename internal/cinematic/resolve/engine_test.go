package resolve_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/enrich"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
	"github.com/bdobrica/Cinematic/internal/cinematic/nlp"
	"github.com/bdobrica/Cinematic/internal/cinematic/resolve"
)

type fakeCatalog struct {
	entries []catalog.Entry
	err     error
}

var _ catalog.Client = (*fakeCatalog)(nil)

func (f *fakeCatalog) Search(ctx context.Context, query string, kind media.Kind) ([]catalog.Entry, error) {
	return f.entries, f.err
}

func (f *fakeCatalog) GetStatus(ctx context.Context, kind media.Kind, externalID int64) (*catalog.Entry, error) {
	return nil, errors.New("not used")
}

func (f *fakeCatalog) Add(ctx context.Context, kind media.Kind, externalID int64) error {
	return errors.New("not used")
}

func (f *fakeCatalog) Remove(ctx context.Context, kind media.Kind, externalID int64) error {
	return errors.New("not used")
}

type fakeEnricher struct {
	candidates []media.CandidateRecord
	err        error
}

var _ enrich.Enricher = (*fakeEnricher)(nil)

func (f *fakeEnricher) Lookup(ctx context.Context, title string, kind media.Kind, year int) ([]media.CandidateRecord, error) {
	return f.candidates, f.err
}

func defaultConfig() resolve.Config {
	return resolve.Config{
		HighConfidence:     0.8,
		ClarificationFloor: 0.4,
		MinMargin:          0.1,
		MaxCandidates:      5,
	}
}

func newEngine(cat catalog.Client, enr enrich.Enricher) *resolve.Engine {
	return resolve.NewEngine(cat, enr, defaultConfig(), nil)
}

func addIntent(entity string) *nlp.Intent {
	return &nlp.Intent{
		Action:    media.ActionAdd,
		Entities:  []string{entity},
		MediaKind: media.KindMovie,
		Confidence: 0.9,
	}
}

func TestAmbiguousTitleAsksForClarification(t *testing.T) {
	enr := &fakeEnricher{candidates: []media.CandidateRecord{
		{ExternalID: 841, Title: "Dune", Year: 1984, Kind: media.KindMovie, Source: media.SourceExternal},
		{ExternalID: 438631, Title: "Dune", Year: 2021, Kind: media.KindMovie, Source: media.SourceExternal},
	}}
	engine := newEngine(&fakeCatalog{}, enr)

	decision, err := engine.Resolve(context.Background(), addIntent("dune"), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeNeedsClarification {
		t.Fatalf("Outcome = %q, want needs_clarification", decision.Outcome)
	}
	if len(decision.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(decision.Candidates))
	}
	if decision.Candidates[0].Year != 2021 {
		t.Errorf("top candidate year = %d, want 2021 (newer release first on ties)", decision.Candidates[0].Year)
	}
	if !strings.Contains(decision.Question, "1. Dune (2021)") {
		t.Errorf("question missing numbered option: %q", decision.Question)
	}
}

func TestMutationResolvesDirectlyWhenUnambiguous(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 27205, Title: "Inception", Year: 2010, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	engine := newEngine(cat, &fakeEnricher{})

	intent := addIntent("inception")
	intent.Action = media.ActionRemove
	decision, err := engine.Resolve(context.Background(), intent, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved (single clear match, nothing pending)", decision.Outcome)
	}
	if decision.Target == nil || decision.Target.ExternalID != 27205 {
		t.Errorf("Target = %+v", decision.Target)
	}
}

func TestMutationConfirmsWhenQuestionWasPending(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 27205, Title: "Inception", Year: 2010, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	engine := newEngine(cat, &fakeEnricher{})

	intent := addIntent("inception")
	intent.Action = media.ActionRemove
	decision, err := engine.Resolve(context.Background(), intent, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeNeedsClarification {
		t.Fatalf("Outcome = %q, want a confirmation over an open question", decision.Outcome)
	}
	if len(decision.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(decision.Candidates))
	}
	if !strings.Contains(decision.Question, "yes/no") {
		t.Errorf("question = %q, want a yes/no confirmation", decision.Question)
	}
}

func TestSearchResolvesDirectlyWhenUnambiguous(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 603, Title: "The Matrix", Year: 1999, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	engine := newEngine(cat, &fakeEnricher{})

	intent := addIntent("the matrix")
	intent.Action = media.ActionSearch
	intent.Year = 1999
	decision, err := engine.Resolve(context.Background(), intent, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved", decision.Outcome)
	}
	if decision.Target == nil || decision.Target.ExternalID != 603 {
		t.Errorf("Target = %+v", decision.Target)
	}
}

func TestExactTitleResolvesWithoutYearHint(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 27205, Title: "Inception", Year: 2010, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	engine := newEngine(cat, &fakeEnricher{})

	intent := addIntent("inception")
	intent.Action = media.ActionStatus
	decision, err := engine.Resolve(context.Background(), intent, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved without a year in the request", decision.Outcome)
	}
	if decision.Target == nil || decision.Target.ExternalID != 27205 {
		t.Errorf("Target = %+v", decision.Target)
	}
}

func TestEqualScoresPreferCatalogCopy(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 100, Title: "Solaris", Year: 1972, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	enr := &fakeEnricher{candidates: []media.CandidateRecord{
		{ExternalID: 200, Title: "Solaris", Year: 2002, Kind: media.KindMovie, Source: media.SourceExternal},
	}}
	engine := newEngine(cat, enr)

	decision, err := engine.Resolve(context.Background(), addIntent("solaris"), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(decision.Candidates) == 0 {
		t.Fatalf("no candidates in decision %+v", decision)
	}
	if decision.Candidates[0].Source != media.SourceCatalog {
		t.Errorf("top candidate source = %q, want catalog", decision.Candidates[0].Source)
	}
}

func TestNoCredibleCandidateIsRejected(t *testing.T) {
	enr := &fakeEnricher{candidates: []media.CandidateRecord{
		{ExternalID: 1, Title: "Completely Different Film", Year: 2010, Kind: media.KindMovie, Source: media.SourceExternal},
	}}
	engine := newEngine(&fakeCatalog{}, enr)

	decision, err := engine.Resolve(context.Background(), addIntent("zyx qwvutsr"), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeRejected {
		t.Errorf("Outcome = %q, want rejected", decision.Outcome)
	}
}

func TestUnknownIntentIsRejected(t *testing.T) {
	engine := newEngine(&fakeCatalog{}, &fakeEnricher{})
	decision, err := engine.Resolve(context.Background(), &nlp.Intent{Action: media.ActionUnknown}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeRejected {
		t.Errorf("Outcome = %q, want rejected", decision.Outcome)
	}
}

func TestEnricherFailureDegradesToCatalog(t *testing.T) {
	cat := &fakeCatalog{entries: []catalog.Entry{
		{ExternalID: 603, Title: "The Matrix", Year: 1999, Kind: media.KindMovie, Status: catalog.StatusPresent},
	}}
	enr := &fakeEnricher{err: enrich.ErrUnavailable}
	engine := newEngine(cat, enr)

	intent := addIntent("the matrix")
	intent.Action = media.ActionStatus
	intent.Year = 1999
	decision, err := engine.Resolve(context.Background(), intent, false)
	if err != nil {
		t.Fatalf("Resolve should degrade, got %v", err)
	}
	if decision.Outcome != resolve.OutcomeResolved {
		t.Errorf("Outcome = %q, want resolved from catalog alone", decision.Outcome)
	}
}

func TestCatalogFailureDegradesToEnricher(t *testing.T) {
	cat := &fakeCatalog{err: catalog.ErrUnavailable}
	enr := &fakeEnricher{candidates: []media.CandidateRecord{
		{ExternalID: 603, Title: "The Matrix", Year: 1999, Kind: media.KindMovie, Source: media.SourceExternal},
	}}
	engine := newEngine(cat, enr)

	decision, err := engine.Resolve(context.Background(), addIntent("the matrix"), false)
	if err != nil {
		t.Fatalf("Resolve should degrade, got %v", err)
	}
	if decision.Outcome == resolve.OutcomeRejected {
		t.Errorf("Outcome = %q, want a usable decision from external results", decision.Outcome)
	}
}

func TestBothSourcesDownIsAnError(t *testing.T) {
	cat := &fakeCatalog{err: catalog.ErrUnavailable}
	enr := &fakeEnricher{err: enrich.ErrUnavailable}
	engine := newEngine(cat, enr)

	_, err := engine.Resolve(context.Background(), addIntent("the matrix"), false)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want wrapped catalog.ErrUnavailable", err)
	}
}

func TestShortlistIsCapped(t *testing.T) {
	var many []media.CandidateRecord
	for i := int64(1); i <= 8; i++ {
		many = append(many, media.CandidateRecord{
			ExternalID: i, Title: "Dune", Year: 2000 + int(i), Kind: media.KindMovie, Source: media.SourceExternal,
		})
	}
	engine := newEngine(&fakeCatalog{}, &fakeEnricher{candidates: many})

	decision, err := engine.Resolve(context.Background(), addIntent("dune"), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Outcome != resolve.OutcomeNeedsClarification {
		t.Fatalf("Outcome = %q", decision.Outcome)
	}
	if len(decision.Candidates) != 5 {
		t.Errorf("shortlist length = %d, want 5", len(decision.Candidates))
	}
}
