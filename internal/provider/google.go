package provider

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
	"github.com/noonyuu/sugoi-questionnaire/internal/form"
)

// Google Forms renders every question into a container with a fixed layout
// class; inside it, the heading span carries the question text and choice
// controls expose role="radio" with the option identity in data-value or
// aria-label.
const (
	googleQuestionContainer = "div.Qr7Oae"
	googleHeadingSpan       = `div[role="heading"] span`
	googleRadio             = `[role="radio"]`
	googleRequiredMarker    = `span[aria-label="Required question"]`
	googleTextInput         = "input.whsOnd, textarea"
	googleSubmitButton      = `div[jsname="M2UYVd"]`
	googleSuccessMarker     = "div.vHW8K"
)

// Google adapts Google Forms to the shared extract/submit contract.
type Google struct {
	timeouts Timeouts
	log      *zap.Logger
}

// NewGoogle constructs the Google Forms adapter.
func NewGoogle(timeouts Timeouts, log *zap.Logger) *Google {
	return &Google{timeouts: timeouts.normalize(), log: log}
}

// Extract reads the form's question structure in document order.
func (g *Google) Extract(ctx context.Context, session browser.Session, url string) (*form.Extraction, error) {
	if err := session.Navigate(ctx, url, g.timeouts.Navigate); err != nil {
		return nil, asExtractionErr(err, "navigate")
	}
	if err := session.WaitFor(ctx, googleQuestionContainer, g.timeouts.Question); err != nil {
		return nil, asExtractionErr(err, "wait for question containers")
	}

	headings, err := session.QueryGrouped(ctx, googleQuestionContainer, googleHeadingSpan)
	if err != nil {
		return nil, asExtractionErr(err, "read question headings")
	}
	radios, err := session.QueryGrouped(ctx, googleQuestionContainer, googleRadio, "data-value", "aria-label")
	if err != nil {
		return nil, asExtractionErr(err, "read choice controls")
	}
	markers, err := session.QueryGrouped(ctx, googleQuestionContainer, googleRequiredMarker)
	if err != nil {
		return nil, asExtractionErr(err, "read required markers")
	}

	extraction := &form.Extraction{}
	for i := range headings {
		question := form.ExtractedQuestion{Type: form.TypeText}
		if len(headings[i]) > 0 {
			question.Text = headings[i][0].Text
		}
		if i < len(markers) && len(markers[i]) > 0 {
			question.Required = true
		}
		if i < len(radios) {
			for _, radio := range radios[i] {
				value := radio.Attrs["data-value"]
				label := radio.Attrs["aria-label"]
				if value == "" {
					value = label
				}
				if label == "" {
					label = value
				}
				if value == "" && label == "" {
					continue
				}
				question.Options = append(question.Options, form.ExtractedOption{Value: value, Label: label})
			}
		}
		if len(question.Options) > 0 {
			question.Type = form.TypeRadioGroup
		}
		extraction.Questions = append(extraction.Questions, question)
	}

	return extraction, nil
}

// Submit replays answers into the live form by container position, then
// clicks through to the confirmation page.
func (g *Google) Submit(ctx context.Context, session browser.Session, url string, answers []form.Answer) error {
	if err := session.Navigate(ctx, url, g.timeouts.Navigate); err != nil {
		return asSubmissionErr(err, "navigate")
	}
	if err := session.WaitFor(ctx, googleQuestionContainer, g.timeouts.Question); err != nil {
		return asSubmissionErr(err, "wait for question containers")
	}

	radios, err := session.QueryGrouped(ctx, googleQuestionContainer, googleRadio)
	if err != nil {
		return asSubmissionErr(err, "read choice controls")
	}

	for _, answer := range answers {
		index := answer.QuestionID
		if index < 0 || index >= len(radios) {
			g.log.Warn("answer references question outside the live form",
				zap.Int("question", index))
			continue
		}

		if len(radios[index]) > 0 {
			if err := g.clickChoice(ctx, session, index, answer.Text); err != nil {
				return err
			}
			continue
		}

		if err := session.FillWithin(ctx, googleQuestionContainer, index, googleTextInput, answer.Text); err != nil {
			if errors.Is(err, browser.ErrNodeMissing) {
				return fmt.Errorf("%w: no text control for question %d", form.ErrSubmissionFailed, index)
			}
			return asSubmissionErr(err, fmt.Sprintf("fill question %d", index))
		}
	}

	if err := session.Click(ctx, googleSubmitButton, g.timeouts.Question); err != nil {
		return fmt.Errorf("%w: submit control: %v", form.ErrSubmissionFailed, err)
	}
	if err := session.WaitFor(ctx, googleSuccessMarker, g.timeouts.Submit); err != nil {
		return fmt.Errorf("%w: success marker: %v", form.ErrSubmissionFailed, err)
	}
	return nil
}

// clickChoice matches the option by data-value first, then by aria-label.
func (g *Google) clickChoice(ctx context.Context, session browser.Session, index int, value string) error {
	byValue := fmt.Sprintf(`[role="radio"][data-value=%s]`, cssString(value))
	err := session.ClickWithin(ctx, googleQuestionContainer, index, byValue)
	if err == nil {
		return nil
	}
	if !errors.Is(err, browser.ErrNodeMissing) {
		return asSubmissionErr(err, fmt.Sprintf("click choice for question %d", index))
	}

	byLabel := fmt.Sprintf(`[role="radio"][aria-label=%s]`, cssString(value))
	err = session.ClickWithin(ctx, googleQuestionContainer, index, byLabel)
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrNodeMissing) {
		return fmt.Errorf("%w: no choice %q for question %d", form.ErrSubmissionFailed, value, index)
	}
	return asSubmissionErr(err, fmt.Sprintf("click choice for question %d", index))
}
