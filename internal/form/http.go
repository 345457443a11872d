package form

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/httpx"
)

// Pipeline is the handler's view of the orchestrating service.
type Pipeline interface {
	Extract(ctx context.Context, rawURL string) (*NormalizedForm, error)
	SubmitTranscript(ctx context.Context, rawURL, transcript string) error
	SubmitAnswers(ctx context.Context, rawURL string, answers []Answer) error
}

// Handler exposes the form pipeline over HTTP.
type Handler struct {
	pipeline Pipeline
	log      *zap.Logger
}

// NewHandler constructs a Handler backed by the provided pipeline.
func NewHandler(pipeline Pipeline, log *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, log: log}
}

// Mount registers the form routes under /api.
func (h *Handler) Mount(router chi.Router) {
	router.Route("/api", func(r chi.Router) {
		r.Get("/hello", h.hello)
		r.Route("/forms", func(r chi.Router) {
			r.Post("/extract", h.extractForm)
			r.Post("/submit", h.submitForm)
		})
	})
}

type extractRequest struct {
	FormURL string `json:"formUrl"`
}

type submitRequest struct {
	FormURL    string   `json:"formUrl"`
	Transcript string   `json:"transcript"`
	Answers    []Answer `json:"answers"`
}

func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Hello, World!")
}

func (h *Handler) extractForm(w http.ResponseWriter, r *http.Request) {
	var payload extractRequest
	if err := decodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.FormURL) == "" {
		httpx.Error(w, http.StatusBadRequest, "formUrl is required")
		return
	}

	nf, err := h.pipeline.Extract(r.Context(), payload.FormURL)
	if err != nil {
		h.log.Error("extraction failed", zap.String("formUrl", payload.FormURL), zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, stableMessage(err))
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"formExists": nf.Questions})
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	var payload submitRequest
	if err := decodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.FormURL) == "" {
		httpx.Error(w, http.StatusBadRequest, "formUrl is required")
		return
	}

	var err error
	switch {
	case len(payload.Answers) > 0:
		err = h.pipeline.SubmitAnswers(r.Context(), payload.FormURL, payload.Answers)
	case strings.TrimSpace(payload.Transcript) != "":
		err = h.pipeline.SubmitTranscript(r.Context(), payload.FormURL, payload.Transcript)
	default:
		httpx.Error(w, http.StatusBadRequest, "transcript or answers is required")
		return
	}

	if err != nil {
		h.log.Error("submission failed", zap.String("formUrl", payload.FormURL), zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, stableMessage(err))
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// stableMessage maps a pipeline error onto its taxonomy message so callers
// see one stable string per failure class regardless of wrapped detail.
func stableMessage(err error) string {
	for _, sentinel := range []error{
		ErrUnresolved,
		ErrExtractionTimeout,
		ErrSubmissionTimeout,
		ErrSubmissionFailed,
		ErrAnswerSynthesis,
		ErrPersistence,
		ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
