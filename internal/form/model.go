package form

import (
	"time"

	"gorm.io/datatypes"
)

// Supported form providers.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
)

// Question type tags. Providers report their own markup vocabulary; adapters
// normalize it to these tags.
const (
	TypeText       = "text"
	TypeRadioGroup = "radiogroup"
)

// Form is one scraped remote form. form_id is the provider-derived stable
// identifier and is the dedup key: one row per remote form no matter how many
// times it is requested.
type Form struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	URL       string            `json:"url" gorm:"not null"`
	FormID    string            `json:"formId" gorm:"column:form_id;uniqueIndex;not null"`
	Provider  string            `json:"provider" gorm:"not null"`
	Metadata  datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"createdAt"`
	Questions []Question        `json:"questions" gorm:"constraint:OnDelete:CASCADE"`
}

// Question belongs to exactly one Form; Position is its order in the source
// document and also the identifier answers reference.
type Question struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	FormID   uint     `json:"formId" gorm:"column:form_id;index;not null"`
	Text     string   `json:"questionText" gorm:"column:question_text;not null"`
	Type     string   `json:"questionType" gorm:"column:question_type;not null"`
	Position int      `json:"position" gorm:"not null"`
	Required bool     `json:"required" gorm:"not null;default:false"`
	Options  []Option `json:"options" gorm:"constraint:OnDelete:CASCADE"`
}

// Option belongs to exactly one Question. Only choice-type questions have any.
type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"questionId" gorm:"index;not null"`
	Text       string `json:"optionText" gorm:"column:option_text;not null"`
	Position   int    `json:"position" gorm:"not null"`
}

// NormalizedQuestion is the provider-agnostic wire representation of one
// question. Options is always non-nil; empty for free-text questions.
type NormalizedQuestion struct {
	Text     string   `json:"question"`
	Type     string   `json:"questionType"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

// NormalizedForm is the provider-agnostic schema of a remote form, in source
// document order.
type NormalizedForm struct {
	Provider  string               `json:"provider"`
	FormID    string               `json:"formId"`
	Questions []NormalizedQuestion `json:"questions"`
}

// Answer pairs a question's position in the form with the text to replay into
// it. Answers are transient: they live for one synthesize→replay cycle and
// are never persisted.
type Answer struct {
	QuestionID int    `json:"id"`
	Text       string `json:"answer"`
}

// Extraction is what a provider adapter reads from the live page. Labels feed
// the normalized schema; control values stay provider-internal.
type Extraction struct {
	Title     string
	Questions []ExtractedQuestion
}

// ExtractedQuestion is one question block as read from the DOM.
type ExtractedQuestion struct {
	Text     string
	Type     string
	Required bool
	Options  []ExtractedOption
}

// ExtractedOption is one choice control; Label falls back to Value when the
// provider exposes no accessible label.
type ExtractedOption struct {
	Value string
	Label string
}

// Normalize converts an extraction into the provider-agnostic schema.
func (e *Extraction) Normalize(provider, formID string) *NormalizedForm {
	questions := make([]NormalizedQuestion, 0, len(e.Questions))
	for _, q := range e.Questions {
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o.Label)
		}
		questions = append(questions, NormalizedQuestion{
			Text:     q.Text,
			Type:     q.Type,
			Required: q.Required,
			Options:  options,
		})
	}
	return &NormalizedForm{Provider: provider, FormID: formID, Questions: questions}
}

// FilterAnswers drops answers referencing questions absent from the form.
// The generative step is best-effort per question, so unknown references are
// discarded rather than failing the batch.
func FilterAnswers(nf *NormalizedForm, answers []Answer) (kept []Answer, dropped []Answer) {
	for _, answer := range answers {
		if answer.QuestionID < 0 || answer.QuestionID >= len(nf.Questions) {
			dropped = append(dropped, answer)
			continue
		}
		kept = append(kept, answer)
	}
	return kept, dropped
}
