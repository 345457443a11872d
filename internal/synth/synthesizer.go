// Package synth converts a free-form transcript into per-question answers by
// calling the Gemini generateContent API under a strict response schema.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/form"
	"github.com/noonyuu/sugoi-questionnaire/internal/observability"
)

// HTTPClient lets tests substitute the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the generative service settings.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Client calls the generative service. Safe for concurrent use.
type Client struct {
	cfg     Config
	client  HTTPClient
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewClient constructs a Client. A nil httpClient gets a default with the
// configured timeout; metrics may be nil.
func NewClient(cfg Config, httpClient HTTPClient, metrics *observability.Metrics, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: httpClient, metrics: metrics, log: log}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   any     `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// answerSchema constrains decoding to {response:[{id,answer}]} where id is the
// question's position in the supplied form.
var answerSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"response": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"id":     map[string]any{"type": "INTEGER", "description": "position of the question in the form"},
					"answer": map[string]any{"type": "STRING", "description": "answer for the question"},
				},
				"required": []string{"id", "answer"},
			},
		},
	},
	"required": []string{"response"},
}

// Synthesize produces one answer per question the model could ground in the
// transcript. Answers referencing unknown question positions are dropped and
// logged, never fatal.
func (c *Client) Synthesize(ctx context.Context, transcript string, nf *form.NormalizedForm) ([]form.Answer, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", form.ErrAnswerSynthesis)
	}
	if nf == nil || len(nf.Questions) == 0 {
		return nil, fmt.Errorf("%w: form has no questions", form.ErrAnswerSynthesis)
	}

	started := time.Now()
	raw, err := c.generate(ctx, transcript, nf)
	if c.metrics != nil {
		c.metrics.SynthesisDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}

	answers, err := parseStructuredAnswers(raw)
	if err != nil {
		return nil, err
	}

	kept, dropped := form.FilterAnswers(nf, answers)
	if len(dropped) > 0 {
		if c.metrics != nil {
			c.metrics.DroppedAnswers.Add(float64(len(dropped)))
		}
		c.log.Warn("dropped synthesized answers for unknown questions",
			zap.String("formId", nf.FormID),
			zap.Int("dropped", len(dropped)))
	}
	return kept, nil
}

func (c *Client) generate(ctx context.Context, transcript string, nf *form.NormalizedForm) (string, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(transcript, nf)}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.2,
			TopP:             0.8,
			ResponseMIMEType: "application/json",
			ResponseSchema:   answerSchema,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", form.ErrAnswerSynthesis, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", form.ErrAnswerSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", form.ErrAnswerSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: status %d: %s", form.ErrAnswerSynthesis, resp.StatusCode, detail)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", form.ErrAnswerSynthesis, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", form.ErrAnswerSynthesis)
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// promptQuestion is the digest of one question shown to the model; id is the
// question's position, which the response schema echoes back.
type promptQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"questionType"`
	Options  []string `json:"options"`
}

func buildPrompt(transcript string, nf *form.NormalizedForm) string {
	digest := make([]promptQuestion, 0, len(nf.Questions))
	for i, q := range nf.Questions {
		digest = append(digest, promptQuestion{
			ID:       i,
			Question: q.Text,
			Type:     q.Type,
			Options:  q.Options,
		})
	}
	encoded, _ := json.Marshal(digest)

	var b strings.Builder
	b.WriteString("# Form Voice Input Assistant\n\n")
	b.WriteString("You convert a spoken transcript into answers for a web form. ")
	b.WriteString("Analyse the transcript and produce the best answer for each question.\n\n")
	b.WriteString("## Input\n")
	b.WriteString("1. Transcript of the user's speech: ")
	b.WriteString(transcript)
	b.WriteString("\n2. Question structure extracted from the form: ")
	b.Write(encoded)
	b.WriteString("\n\n## Rules\n")
	b.WriteString("1. For choice questions pick exactly one of the provided options, verbatim.\n")
	b.WriteString("2. For text questions extract or summarise the relevant part of the transcript.\n")
	b.WriteString("3. Omit questions the transcript does not address.\n")
	b.WriteString("4. Answer strictly in the JSON schema you were given.\n")
	return b.String()
}
