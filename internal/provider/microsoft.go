package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
	"github.com/noonyuu/sugoi-questionnaire/internal/form"
)

// Microsoft Forms assigns every question container an id prefixed with
// QuestionId_; the answer area is linked to it via aria-labelledby together
// with a QuestionInfo_ companion, and choice controls are native radio inputs
// scoped under a radiogroup keyed to the question id.
const (
	msQuestionContainer = `[id^="QuestionId_"]`
	msQuestionIDPrefix  = "QuestionId_"
	msSubmitButton      = `[data-automation-id="submitButton"]`
	msSuccessMarker     = "#form-main-content1 > div > div > div:nth-child(2) > div:nth-child(1) > div:nth-child(2) > div:nth-child(2) > span"
)

// Microsoft adapts Microsoft Forms to the shared extract/submit contract.
type Microsoft struct {
	timeouts Timeouts
	log      *zap.Logger
}

// NewMicrosoft constructs the Microsoft Forms adapter.
func NewMicrosoft(timeouts Timeouts, log *zap.Logger) *Microsoft {
	return &Microsoft{timeouts: timeouts.normalize(), log: log}
}

// Extract enumerates the question containers in document order and reads each
// one's text, inferred type, required marker, and choices.
func (m *Microsoft) Extract(ctx context.Context, session browser.Session, url string) (*form.Extraction, error) {
	if err := session.Navigate(ctx, url, m.timeouts.Navigate); err != nil {
		return nil, asExtractionErr(err, "navigate")
	}
	if err := session.WaitFor(ctx, msQuestionContainer, m.timeouts.Question); err != nil {
		return nil, asExtractionErr(err, "wait for question containers")
	}

	containers, err := session.Query(ctx, msQuestionContainer, "id")
	if err != nil {
		return nil, asExtractionErr(err, "enumerate question containers")
	}

	extraction := &form.Extraction{}
	for _, container := range containers {
		id := container.Attrs["id"]
		if id == "" {
			continue
		}
		question, err := m.extractQuestion(ctx, session, id)
		if err != nil {
			return nil, err
		}
		extraction.Questions = append(extraction.Questions, *question)
	}

	return extraction, nil
}

func (m *Microsoft) extractQuestion(ctx context.Context, session browser.Session, id string) (*form.ExtractedQuestion, error) {
	name := strings.TrimPrefix(id, msQuestionIDPrefix)

	textSelector := fmt.Sprintf("#%s > div:nth-child(1) > span > span:nth-child(1) > span:nth-child(2)", id)
	if err := session.WaitFor(ctx, textSelector, m.timeouts.Question); err != nil {
		return nil, asExtractionErr(err, fmt.Sprintf("wait for question %s", id))
	}
	text, err := session.ReadText(ctx, textSelector)
	if err != nil {
		return nil, asExtractionErr(err, fmt.Sprintf("read question %s", id))
	}

	// The answer-area element is absent for some layouts, so probe with a
	// non-waiting query instead of a bounded read.
	answerAreaSelector := fmt.Sprintf(`[aria-labelledby="%s QuestionInfo_%s"]`, id, name)
	answerAreas, err := session.Query(ctx, answerAreaSelector, "data-automation-id", "role")
	if err != nil {
		return nil, asExtractionErr(err, fmt.Sprintf("probe answer area for %s", id))
	}
	rawType := ""
	if len(answerAreas) > 0 {
		rawType = answerAreas[0].Attrs["data-automation-id"]
		if rawType == "" {
			rawType = answerAreas[0].Attrs["role"]
		}
	}

	choiceSelector := fmt.Sprintf(`div[role="radiogroup"][aria-labelledby^="%s"] input[type="radio"]`, id)
	choices, err := session.Query(ctx, choiceSelector, "value", "data-automation-value", "aria-label")
	if err != nil {
		return nil, asExtractionErr(err, fmt.Sprintf("read choices for %s", id))
	}

	requiredSelector := fmt.Sprintf(`#%s [data-automation-id="requiredStar"]`, id)
	requiredMarkers, err := session.Query(ctx, requiredSelector)
	if err != nil {
		return nil, asExtractionErr(err, fmt.Sprintf("read required marker for %s", id))
	}

	question := &form.ExtractedQuestion{
		Text:     strings.TrimSpace(text),
		Type:     normalizeMicrosoftType(rawType, len(choices)),
		Required: len(requiredMarkers) > 0,
	}
	for _, choice := range choices {
		value := choice.Attrs["value"]
		label := choice.Attrs["data-automation-value"]
		if label == "" {
			label = choice.Attrs["aria-label"]
		}
		if label == "" {
			label = value
		}
		question.Options = append(question.Options, form.ExtractedOption{Value: value, Label: label})
	}

	return question, nil
}

// normalizeMicrosoftType maps the provider's automation vocabulary onto the
// shared type tags. A question with no discoverable choices is free text.
func normalizeMicrosoftType(rawType string, choices int) string {
	if choices > 0 {
		return form.TypeRadioGroup
	}
	switch rawType {
	case "radiogroup":
		return form.TypeRadioGroup
	default:
		return form.TypeText
	}
}

// Submit re-enumerates the live containers in document order and applies each
// answer by its question position, then submits and waits for confirmation.
func (m *Microsoft) Submit(ctx context.Context, session browser.Session, url string, answers []form.Answer) error {
	if err := session.Navigate(ctx, url, m.timeouts.Navigate); err != nil {
		return asSubmissionErr(err, "navigate")
	}
	if err := session.WaitFor(ctx, msQuestionContainer, m.timeouts.Question); err != nil {
		return asSubmissionErr(err, "wait for question containers")
	}

	containers, err := session.Query(ctx, msQuestionContainer, "id")
	if err != nil {
		return asSubmissionErr(err, "enumerate question containers")
	}

	for _, answer := range answers {
		if answer.QuestionID < 0 || answer.QuestionID >= len(containers) {
			m.log.Warn("answer references question outside the live form",
				zap.Int("question", answer.QuestionID))
			continue
		}
		id := containers[answer.QuestionID].Attrs["id"]
		if err := m.applyAnswer(ctx, session, id, answer); err != nil {
			return err
		}
	}

	if err := session.Click(ctx, msSubmitButton, m.timeouts.Question*3); err != nil {
		return fmt.Errorf("%w: submit control: %v", form.ErrSubmissionFailed, err)
	}
	if err := session.WaitFor(ctx, msSuccessMarker, m.timeouts.Submit); err != nil {
		return fmt.Errorf("%w: success marker: %v", form.ErrSubmissionFailed, err)
	}
	return nil
}

func (m *Microsoft) applyAnswer(ctx context.Context, session browser.Session, id string, answer form.Answer) error {
	name := strings.TrimPrefix(id, msQuestionIDPrefix)

	choiceSelector := fmt.Sprintf(`div[role="radiogroup"][aria-labelledby^="%s"] input[type="radio"]`, id)
	choices, err := session.Query(ctx, choiceSelector, "value", "data-automation-value", "aria-label")
	if err != nil {
		return asSubmissionErr(err, fmt.Sprintf("probe choices for question %d", answer.QuestionID))
	}

	if len(choices) > 0 {
		// Answers carry the option's label, but the clickable input is
		// addressed by its value attribute, which can differ. Resolve the
		// label to a value through the same fallback chain extraction uses.
		value, ok := matchChoice(choices, answer.Text)
		if !ok {
			return fmt.Errorf("%w: no choice %q for question %d", form.ErrSubmissionFailed, answer.Text, answer.QuestionID)
		}
		radioSelector := fmt.Sprintf(`input[name=%s][value=%s]`, cssString(name), cssString(value))
		if err := session.Click(ctx, radioSelector, m.timeouts.Question); err != nil {
			if browser.IsTimeout(err) {
				return fmt.Errorf("%w: no choice %q for question %d", form.ErrSubmissionFailed, answer.Text, answer.QuestionID)
			}
			return asSubmissionErr(err, fmt.Sprintf("click choice for question %d", answer.QuestionID))
		}
		return nil
	}

	textSelector := fmt.Sprintf(`input[aria-labelledby="%s QuestionInfo_%s"], textarea[name="%s"]`, id, name, id)
	if err := session.Fill(ctx, textSelector, answer.Text, m.timeouts.Question); err != nil {
		return asSubmissionErr(err, fmt.Sprintf("fill question %d", answer.QuestionID))
	}
	return nil
}

// matchChoice resolves an answer string to a radio input's value attribute.
// The label fallback chain mirrors extraction; a raw value is accepted too.
func matchChoice(choices []browser.Element, text string) (string, bool) {
	for _, choice := range choices {
		label := choice.Attrs["data-automation-value"]
		if label == "" {
			label = choice.Attrs["aria-label"]
		}
		if text == label || text == choice.Attrs["value"] {
			return choice.Attrs["value"], true
		}
	}
	return "", false
}
