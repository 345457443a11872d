package form

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store defines the persistence contract for scraped forms.
type Store interface {
	// Lookup returns the normalized form for a formID, or ErrNotFound.
	Lookup(ctx context.Context, formID string) (*NormalizedForm, error)
	// Insert persists a form with its questions and options atomically.
	// A formID collision returns ErrDuplicateForm; any other failure
	// returns ErrPersistence and leaves nothing observable behind.
	Insert(ctx context.Context, entity *Form, questions []Question) error
}

// GormStore provides a relational-backed implementation of Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a store from a database connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Lookup joins Form→Question→Option ordered by question position, then option
// position, and maps the rows to the provider-agnostic schema.
func (s *GormStore) Lookup(ctx context.Context, formID string) (*NormalizedForm, error) {
	var entity Form
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&entity, "form_id = ?", formID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	questions := make([]NormalizedQuestion, 0, len(entity.Questions))
	for _, q := range entity.Questions {
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o.Text)
		}
		questions = append(questions, NormalizedQuestion{
			Text:     q.Text,
			Type:     q.Type,
			Required: q.Required,
			Options:  options,
		})
	}

	return &NormalizedForm{
		Provider:  entity.Provider,
		FormID:    entity.FormID,
		Questions: questions,
	}, nil
}

// Insert runs one transaction: form row, then the question batch, then the
// option batch. Generated question IDs are matched to their options by slice
// position; GORM backfills IDs in insert order, so index i of the submitted
// batch is the parent of the options staged at index i.
func (s *GormStore) Insert(ctx context.Context, entity *Form, questions []Question) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(entity).Error; err != nil {
			return err
		}

		if len(questions) == 0 {
			return nil
		}

		for i := range questions {
			questions[i].FormID = entity.ID
		}
		if err := tx.Omit(clause.Associations).Create(&questions).Error; err != nil {
			return err
		}

		var options []Option
		for i := range questions {
			for j := range questions[i].Options {
				option := questions[i].Options[j]
				option.QuestionID = questions[i].ID
				options = append(options, option)
			}
		}
		if len(options) == 0 {
			return nil
		}
		return tx.Create(&options).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateForm
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
