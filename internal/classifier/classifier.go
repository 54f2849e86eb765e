// Package classifier implements router.Classifier on top of the Anthropic
// Messages API.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/anthropic"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
)

// ErrNoJSON is returned when the model answer contains no JSON object.
var ErrNoJSON = errors.New("no json object in classifier output")

// Completer is the part of the Anthropic client the classifier needs.
type Completer interface {
	Complete(ctx context.Context, p anthropic.Params) (anthropic.Completion, error)
}

type Classifier struct {
	llm       Completer
	maxTokens int
	logger    *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Classifier {
	return &Classifier{llm: llm, maxTokens: 200, logger: logger}
}

type llmClassification struct {
	Target     string  `json:"target"`
	Thought    string  `json:"thought"`
	Confidence float64 `json:"confidence"`
	Priority   string  `json:"priority"`
}

// Classify asks the model for a routing target. Shape validation is left to
// the router, which retries malformed answers.
func (c *Classifier) Classify(ctx context.Context, prompt, userInput string) (router.Classification, error) {
	start := time.Now()
	zero := 0.0
	out, err := c.llm.Complete(ctx, anthropic.Params{
		System:      systemPreamble + "\n\n" + prompt,
		Messages:    []anthropic.Message{{Role: "user", Content: fmt.Sprintf(userPromptTemplate, userInput)}},
		MaxTokens:   c.maxTokens,
		Temperature: &zero,
	})
	if err != nil {
		return router.Classification{}, fmt.Errorf("llm classify: %w", err)
	}

	parsed, err := parse(out.Text)
	if err != nil {
		c.logger.Warn("failed to parse classifier response", "error", err, "raw", out.Text)
		return router.Classification{}, fmt.Errorf("parse classification: %w", err)
	}

	c.logger.Debug("classified utterance",
		"target", parsed.Target,
		"confidence", parsed.Confidence,
		"latency_ms", time.Since(start).Milliseconds(),
		"input_tokens", out.InputTokens,
	)

	return router.Classification{
		Target:     parsed.Target,
		Thought:    parsed.Thought,
		Confidence: parsed.Confidence,
		Priority:   router.Priority(parsed.Priority),
	}, nil
}

// parse pulls the JSON object out of a model answer that may be wrapped in
// code fences or surrounded by stray prose.
func parse(raw string) (llmClassification, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return llmClassification{}, ErrNoJSON
	}

	var c llmClassification
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return llmClassification{}, err
	}
	return c, nil
}

var _ router.Classifier = (*Classifier)(nil)
