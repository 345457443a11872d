package form

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Form{}, &Question{}, &Option{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(db)
}

func sampleQuestions() []Question {
	return []Question{
		{
			Text:     "What is your name?",
			Type:     TypeText,
			Position: 0,
			Required: true,
		},
		{
			Text:     "Pick a colour",
			Type:     TypeRadioGroup,
			Position: 1,
			Options: []Option{
				{Text: "Red", Position: 0},
				{Text: "Green", Position: 1},
				{Text: "Blue", Position: 2},
			},
		},
	}
}

func TestLookupNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Lookup(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertLookupRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := &Form{URL: "https://forms.office.com/x?id=F1", FormID: "F1", Provider: ProviderMicrosoft}
	if err := store.Insert(ctx, entity, sampleQuestions()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	nf, err := store.Lookup(ctx, "F1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	want := []NormalizedQuestion{
		{Text: "What is your name?", Type: TypeText, Required: true, Options: []string{}},
		{Text: "Pick a colour", Type: TypeRadioGroup, Options: []string{"Red", "Green", "Blue"}},
	}
	if nf.Provider != ProviderMicrosoft || nf.FormID != "F1" {
		t.Fatalf("unexpected identity: %s/%s", nf.Provider, nf.FormID)
	}
	if !reflect.DeepEqual(nf.Questions, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", nf.Questions, want)
	}
}

func TestLookupPreservesPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert questions out of positional order; lookup must sort by position.
	questions := []Question{
		{Text: "Second", Type: TypeText, Position: 1},
		{Text: "First", Type: TypeRadioGroup, Position: 0, Options: []Option{
			{Text: "B", Position: 1},
			{Text: "A", Position: 0},
		}},
	}
	entity := &Form{URL: "u", FormID: "F2", Provider: ProviderGoogle}
	if err := store.Insert(ctx, entity, questions); err != nil {
		t.Fatalf("insert: %v", err)
	}

	nf, err := store.Lookup(ctx, "F2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if nf.Questions[0].Text != "First" || nf.Questions[1].Text != "Second" {
		t.Fatalf("questions out of order: %+v", nf.Questions)
	}
	if !reflect.DeepEqual(nf.Questions[0].Options, []string{"A", "B"}) {
		t.Fatalf("options out of order: %+v", nf.Questions[0].Options)
	}
}

func TestInsertDuplicateFormID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &Form{URL: "u1", FormID: "F3", Provider: ProviderGoogle}
	if err := store.Insert(ctx, first, sampleQuestions()); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := &Form{URL: "u2", FormID: "F3", Provider: ProviderGoogle}
	err := store.Insert(ctx, second, sampleQuestions())
	if !errors.Is(err, ErrDuplicateForm) {
		t.Fatalf("expected ErrDuplicateForm, got %v", err)
	}

	// The loser's transaction must leave no partial rows behind.
	var questionCount int64
	store.db.Model(&Question{}).Count(&questionCount)
	if questionCount != 2 {
		t.Fatalf("expected 2 questions after duplicate insert, got %d", questionCount)
	}
}

func TestInsertEmptyForm(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := &Form{URL: "u", FormID: "F4", Provider: ProviderGoogle}
	if err := store.Insert(ctx, entity, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	nf, err := store.Lookup(ctx, "F4")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(nf.Questions) != 0 {
		t.Fatalf("expected no questions, got %d", len(nf.Questions))
	}
}
