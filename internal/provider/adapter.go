// Package provider holds the per-provider scraping and replay adapters.
// Each adapter encodes one vendor's selector and layout knowledge behind the
// shared extract/submit contract defined by the form package.
package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
	"github.com/noonyuu/sugoi-questionnaire/internal/form"
)

// Timeouts bounds the DOM waits an adapter performs. Submit is the longest:
// it covers the post-submit confirmation, the step least under our control.
type Timeouts struct {
	Navigate time.Duration
	Question time.Duration
	Submit   time.Duration
}

// DefaultTimeouts mirror the bounds the providers tolerate in practice.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigate: 30 * time.Second,
		Question: 10 * time.Second,
		Submit:   60 * time.Second,
	}
}

func (t Timeouts) normalize() Timeouts {
	defaults := DefaultTimeouts()
	if t.Navigate <= 0 {
		t.Navigate = defaults.Navigate
	}
	if t.Question <= 0 {
		t.Question = defaults.Question
	}
	if t.Submit <= 0 {
		t.Submit = defaults.Submit
	}
	return t
}

// asExtractionErr classifies a DOM failure during extraction.
func asExtractionErr(err error, step string) error {
	if browser.IsTimeout(err) {
		return fmt.Errorf("%w: %s: %v", form.ErrExtractionTimeout, step, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// asSubmissionErr classifies a DOM failure while applying answers.
func asSubmissionErr(err error, step string) error {
	if browser.IsTimeout(err) {
		return fmt.Errorf("%w: %s: %v", form.ErrSubmissionTimeout, step, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// cssString renders a value as a quoted CSS attribute-selector string.
func cssString(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}
