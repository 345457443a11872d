package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
)

type fakeStore struct {
	lookups   map[string]*NormalizedForm
	insertErr error
	inserted  []*Form
}

func (s *fakeStore) Lookup(_ context.Context, formID string) (*NormalizedForm, error) {
	if nf, ok := s.lookups[formID]; ok {
		return nf, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) Insert(_ context.Context, entity *Form, questions []Question) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, entity)
	normalized := make([]NormalizedQuestion, 0, len(questions))
	for _, q := range questions {
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o.Text)
		}
		normalized = append(normalized, NormalizedQuestion{Text: q.Text, Type: q.Type, Required: q.Required, Options: options})
	}
	if s.lookups == nil {
		s.lookups = make(map[string]*NormalizedForm)
	}
	s.lookups[entity.FormID] = &NormalizedForm{Provider: entity.Provider, FormID: entity.FormID, Questions: normalized}
	return nil
}

type fakeAdapter struct {
	extraction   *Extraction
	extractErr   error
	extractCalls int
	submitErr    error
	submitted    [][]Answer
}

func (a *fakeAdapter) Extract(context.Context, browser.Session, string) (*Extraction, error) {
	a.extractCalls++
	if a.extractErr != nil {
		return nil, a.extractErr
	}
	return a.extraction, nil
}

func (a *fakeAdapter) Submit(_ context.Context, _ browser.Session, _ string, answers []Answer) error {
	a.submitted = append(a.submitted, answers)
	return a.submitErr
}

type noopSession struct{ closed bool }

func (s *noopSession) Navigate(context.Context, string, time.Duration) error { return nil }
func (s *noopSession) WaitFor(context.Context, string, time.Duration) error  { return nil }
func (s *noopSession) ReadText(context.Context, string) (string, error)      { return "", nil }
func (s *noopSession) Query(context.Context, string, ...string) ([]browser.Element, error) {
	return nil, nil
}
func (s *noopSession) QueryGrouped(context.Context, string, string, ...string) ([][]browser.Element, error) {
	return nil, nil
}
func (s *noopSession) Click(context.Context, string, time.Duration) error { return nil }
func (s *noopSession) ClickWithin(context.Context, string, int, string) error {
	return nil
}
func (s *noopSession) Fill(context.Context, string, string, time.Duration) error { return nil }
func (s *noopSession) FillWithin(context.Context, string, int, string, string) error {
	return nil
}
func (s *noopSession) Close() error {
	s.closed = true
	return nil
}

type fakeFactory struct {
	sessions []*noopSession
}

func (f *fakeFactory) NewSession() (browser.Session, error) {
	session := &noopSession{}
	f.sessions = append(f.sessions, session)
	return session, nil
}

type fakeSynth struct {
	answers []Answer
	err     error
}

func (s *fakeSynth) Synthesize(context.Context, string, *NormalizedForm) ([]Answer, error) {
	return s.answers, s.err
}

func newTestService(store *fakeStore, adapter *fakeAdapter, factory *fakeFactory, synth *fakeSynth) *Service {
	return NewService(
		store,
		map[string]Adapter{ProviderGoogle: adapter, ProviderMicrosoft: adapter},
		factory,
		synth,
		nil,
		nil,
		zap.NewNop(),
	)
}

const msURL = "https://forms.office.com/Pages/ResponsePage.aspx?id=RACE1"

func sampleExtraction() *Extraction {
	return &Extraction{Questions: []ExtractedQuestion{
		{Text: "Name?", Type: TypeText},
		{Text: "Colour?", Type: TypeRadioGroup, Options: []ExtractedOption{
			{Value: "r", Label: "Red"}, {Value: "g", Label: "Green"}, {Value: "b", Label: "Blue"},
		}},
	}}
}

func TestExtractUnresolvedURL(t *testing.T) {
	service := newTestService(&fakeStore{}, &fakeAdapter{}, &fakeFactory{}, &fakeSynth{})
	if _, err := service.Extract(context.Background(), "https://example.com/form"); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestExtractScrapesOnceAndCaches(t *testing.T) {
	store := &fakeStore{}
	adapter := &fakeAdapter{extraction: sampleExtraction()}
	factory := &fakeFactory{}
	service := newTestService(store, adapter, factory, &fakeSynth{})

	first, err := service.Extract(context.Background(), msURL)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := service.Extract(context.Background(), msURL)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}

	if adapter.extractCalls != 1 {
		t.Fatalf("expected 1 DOM extraction, got %d", adapter.extractCalls)
	}
	if len(first.Questions) != 2 || len(second.Questions) != 2 {
		t.Fatalf("unexpected question counts: %d, %d", len(first.Questions), len(second.Questions))
	}
	if second.Questions[1].Options[0] != "Red" {
		t.Fatalf("cached form lost options: %+v", second.Questions[1])
	}
	if len(factory.sessions) != 1 || !factory.sessions[0].closed {
		t.Fatalf("expected exactly one closed session, got %+v", factory.sessions)
	}
}

func TestExtractCacheHitSkipsDOM(t *testing.T) {
	store := &fakeStore{lookups: map[string]*NormalizedForm{
		"RACE1": {Provider: ProviderMicrosoft, FormID: "RACE1", Questions: []NormalizedQuestion{{Text: "Q", Type: TypeText, Options: []string{}}}},
	}}
	adapter := &fakeAdapter{}
	factory := &fakeFactory{}
	service := newTestService(store, adapter, factory, &fakeSynth{})

	if _, err := service.Extract(context.Background(), msURL); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if adapter.extractCalls != 0 {
		t.Fatalf("cache hit should not touch the DOM, got %d calls", adapter.extractCalls)
	}
	if len(factory.sessions) != 0 {
		t.Fatalf("cache hit should not open a session")
	}
}

func TestExtractDuplicateRaceFallsBackToLookup(t *testing.T) {
	winner := &NormalizedForm{Provider: ProviderMicrosoft, FormID: "RACE1", Questions: []NormalizedQuestion{{Text: "winner", Type: TypeText, Options: []string{}}}}
	store := &raceStore{winner: winner}
	adapter := &fakeAdapter{extraction: sampleExtraction()}
	service := newTestService(&fakeStore{}, adapter, &fakeFactory{}, &fakeSynth{})
	service.store = store

	nf, err := service.Extract(context.Background(), msURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if nf.Questions[0].Text != "winner" {
		t.Fatalf("expected the concurrent winner's row, got %+v", nf.Questions)
	}
}

// raceStore simulates losing the first-insert race: the initial lookup misses,
// the insert conflicts, and the retried lookup sees the winner's row.
type raceStore struct {
	winner  *NormalizedForm
	lookups int
}

func (s *raceStore) Lookup(context.Context, string) (*NormalizedForm, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, ErrNotFound
	}
	return s.winner, nil
}

func (s *raceStore) Insert(context.Context, *Form, []Question) error {
	return ErrDuplicateForm
}

func TestExtractClosesSessionOnAdapterError(t *testing.T) {
	adapter := &fakeAdapter{extractErr: ErrExtractionTimeout}
	factory := &fakeFactory{}
	service := newTestService(&fakeStore{}, adapter, factory, &fakeSynth{})

	if _, err := service.Extract(context.Background(), msURL); !errors.Is(err, ErrExtractionTimeout) {
		t.Fatalf("expected ErrExtractionTimeout, got %v", err)
	}
	if len(factory.sessions) != 1 || !factory.sessions[0].closed {
		t.Fatalf("session must be closed on every exit path")
	}
}

func TestSubmitAnswersDropsUnknownQuestions(t *testing.T) {
	store := &fakeStore{}
	adapter := &fakeAdapter{extraction: sampleExtraction()}
	service := newTestService(store, adapter, &fakeFactory{}, &fakeSynth{})

	answers := []Answer{
		{QuestionID: 0, Text: "Alice"},
		{QuestionID: 7, Text: "out of range"},
		{QuestionID: 1, Text: "Red"},
	}
	if err := service.SubmitAnswers(context.Background(), msURL, answers); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(adapter.submitted) != 1 {
		t.Fatalf("expected one replay, got %d", len(adapter.submitted))
	}
	replayed := adapter.submitted[0]
	if len(replayed) != 2 || replayed[0].QuestionID != 0 || replayed[1].QuestionID != 1 {
		t.Fatalf("unexpected replayed answers: %+v", replayed)
	}
}

func TestSubmitTranscriptSynthesisFailureIsFatal(t *testing.T) {
	store := &fakeStore{}
	adapter := &fakeAdapter{extraction: sampleExtraction()}
	service := newTestService(store, adapter, &fakeFactory{}, &fakeSynth{err: ErrAnswerSynthesis})

	err := service.SubmitTranscript(context.Background(), msURL, "my name is alice")
	if !errors.Is(err, ErrAnswerSynthesis) {
		t.Fatalf("expected ErrAnswerSynthesis, got %v", err)
	}
	if len(adapter.submitted) != 0 {
		t.Fatalf("failed synthesis must not replay answers")
	}
}

func TestSubmitClosesSessionOnFailure(t *testing.T) {
	store := &fakeStore{}
	adapter := &fakeAdapter{extraction: sampleExtraction(), submitErr: ErrSubmissionFailed}
	factory := &fakeFactory{}
	synth := &fakeSynth{answers: []Answer{{QuestionID: 0, Text: "Alice"}}}
	service := newTestService(store, adapter, factory, synth)

	err := service.SubmitTranscript(context.Background(), msURL, "my name is alice")
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	for _, session := range factory.sessions {
		if !session.closed {
			t.Fatalf("all sessions must be closed after failure")
		}
	}
}
