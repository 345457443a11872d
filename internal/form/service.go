package form

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
	"github.com/noonyuu/sugoi-questionnaire/internal/events"
	"github.com/noonyuu/sugoi-questionnaire/internal/observability"
)

// Adapter is the provider-specific capability set: read a live form's
// structure, or replay answers into it. Implementations live in the provider
// package and are selected by the resolver's provider tag.
type Adapter interface {
	Extract(ctx context.Context, session browser.Session, url string) (*Extraction, error)
	Submit(ctx context.Context, session browser.Session, url string, answers []Answer) error
}

// SessionFactory opens browser sessions. Each request owns exactly one
// session for its full duration.
type SessionFactory interface {
	NewSession() (browser.Session, error)
}

// Synthesizer turns a transcript and a normalized form into per-question
// answers.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript string, nf *NormalizedForm) ([]Answer, error)
}

// Service sequences the extraction and submission pipelines.
type Service struct {
	store    Store
	adapters map[string]Adapter
	sessions SessionFactory
	synth    Synthesizer
	events   *events.Publisher
	metrics  *observability.Metrics
	log      *zap.Logger
}

// NewService wires the pipeline. events and metrics may be nil; both degrade
// to no-ops.
func NewService(store Store, adapters map[string]Adapter, sessions SessionFactory, synth Synthesizer, publisher *events.Publisher, metrics *observability.Metrics, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		adapters: adapters,
		sessions: sessions,
		synth:    synth,
		events:   publisher,
		metrics:  metrics,
		log:      log,
	}
}

// Extract resolves the form identity, answers from the store when the form is
// already known, and otherwise scrapes, persists, and returns the normalized
// schema. The store's unique constraint is the tie-breaker when two first-time
// extractions of the same form race: the loser retries the lookup.
func (s *Service) Extract(ctx context.Context, rawURL string) (*NormalizedForm, error) {
	provider, formID, err := Resolve(rawURL)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.Lookup(ctx, formID)
	if err == nil {
		s.countCacheHit()
		s.log.Debug("form served from store", zap.String("formId", formID))
		return cached, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %q", ErrUnresolved, provider)
	}

	extraction, err := s.scrape(ctx, adapter, rawURL)
	if err != nil {
		s.countExtraction(provider, "error")
		return nil, err
	}
	s.countExtraction(provider, "ok")

	normalized := extraction.Normalize(provider, formID)
	if err := s.persist(ctx, rawURL, provider, formID, extraction); err != nil {
		if errors.Is(err, ErrDuplicateForm) {
			// A concurrent request won the first insert; its row is
			// authoritative.
			return s.store.Lookup(ctx, formID)
		}
		return nil, err
	}

	s.events.FormExtracted(ctx, provider, formID, len(normalized.Questions))
	s.log.Info("form extracted",
		zap.String("provider", provider),
		zap.String("formId", formID),
		zap.Int("questions", len(normalized.Questions)))
	return normalized, nil
}

// SubmitTranscript synthesizes answers from a transcript and replays them
// into the live form.
func (s *Service) SubmitTranscript(ctx context.Context, rawURL, transcript string) error {
	nf, err := s.Extract(ctx, rawURL)
	if err != nil {
		return err
	}

	answers, err := s.synth.Synthesize(ctx, transcript, nf)
	if err != nil {
		return err
	}

	return s.replay(ctx, nf, rawURL, answers)
}

// SubmitAnswers replays caller-provided answers into the live form. Answers
// referencing unknown questions are dropped, not fatal.
func (s *Service) SubmitAnswers(ctx context.Context, rawURL string, answers []Answer) error {
	nf, err := s.Extract(ctx, rawURL)
	if err != nil {
		return err
	}

	kept, dropped := FilterAnswers(nf, answers)
	if len(dropped) > 0 {
		s.countDropped(len(dropped))
		s.log.Warn("dropped answers for unknown questions",
			zap.String("formId", nf.FormID),
			zap.Int("dropped", len(dropped)))
	}

	return s.replay(ctx, nf, rawURL, kept)
}

func (s *Service) scrape(ctx context.Context, adapter Adapter, rawURL string) (*Extraction, error) {
	session, err := s.sessions.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return adapter.Extract(ctx, session, rawURL)
}

func (s *Service) persist(ctx context.Context, rawURL, provider, formID string, extraction *Extraction) error {
	entity := &Form{
		URL:      rawURL,
		FormID:   formID,
		Provider: provider,
	}
	if extraction.Title != "" {
		entity.Metadata = map[string]any{"title": extraction.Title}
	}

	questions := make([]Question, 0, len(extraction.Questions))
	for position, q := range extraction.Questions {
		options := make([]Option, 0, len(q.Options))
		for optionPosition, o := range q.Options {
			options = append(options, Option{Text: o.Label, Position: optionPosition})
		}
		questions = append(questions, Question{
			Text:     q.Text,
			Type:     q.Type,
			Position: position,
			Required: q.Required,
			Options:  options,
		})
	}

	return s.store.Insert(ctx, entity, questions)
}

func (s *Service) replay(ctx context.Context, nf *NormalizedForm, rawURL string, answers []Answer) error {
	adapter, ok := s.adapters[nf.Provider]
	if !ok {
		return fmt.Errorf("%w: no adapter for %q", ErrUnresolved, nf.Provider)
	}

	session, err := s.sessions.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	if err := adapter.Submit(ctx, session, rawURL, answers); err != nil {
		s.countSubmission(nf.Provider, "error")
		return err
	}
	s.countSubmission(nf.Provider, "ok")

	s.events.FormSubmitted(ctx, nf.Provider, nf.FormID)
	s.log.Info("form submitted",
		zap.String("provider", nf.Provider),
		zap.String("formId", nf.FormID),
		zap.Int("answers", len(answers)))
	return nil
}

func (s *Service) countCacheHit() {
	if s.metrics != nil {
		s.metrics.CacheHits.Inc()
	}
}

func (s *Service) countExtraction(provider, result string) {
	if s.metrics != nil {
		s.metrics.Extractions.WithLabelValues(provider, result).Inc()
	}
}

func (s *Service) countSubmission(provider, result string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(provider, result).Inc()
	}
}

func (s *Service) countDropped(n int) {
	if s.metrics != nil {
		s.metrics.DroppedAnswers.Add(float64(n))
	}
}
