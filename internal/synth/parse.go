package synth

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/noonyuu/sugoi-questionnaire/internal/form"
)

var (
	fencedJSON   = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	embeddedJSON = regexp.MustCompile(`(?s)\{.*\}`)
)

type structuredAnswers struct {
	Response []struct {
		ID     int    `json:"id"`
		Answer string `json:"answer"`
	} `json:"response"`
}

// parseStructuredAnswers decodes the model output. Strict JSON first; on
// failure it tries a fenced code block, then the first top-level JSON object
// in the text. If no candidate parses, the result is ErrAnswerSynthesis.
// Answers are never guessed.
func parseStructuredAnswers(text string) ([]form.Answer, error) {
	var decoded structuredAnswers
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		candidate := ""
		if match := fencedJSON.FindStringSubmatch(text); match != nil {
			candidate = match[1]
		} else if match := embeddedJSON.FindString(text); match != "" {
			candidate = match
		}
		if candidate == "" {
			return nil, fmt.Errorf("%w: no JSON found in model output", form.ErrAnswerSynthesis)
		}
		if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", form.ErrAnswerSynthesis, err)
		}
	}

	answers := make([]form.Answer, 0, len(decoded.Response))
	for _, item := range decoded.Response {
		answers = append(answers, form.Answer{QuestionID: item.ID, Text: item.Answer})
	}
	return answers, nil
}
