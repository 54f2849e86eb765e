// Package router decides the routing target for one utterance. It walks an
// ordered fallback chain (classifier, keyword rules, safe default) and always
// returns a well-formed Decision.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
)

// Priority is the urgency attached to a decision.
type Priority string

const (
	PriorityNormal    Priority = "NORMAL"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

// Tier names the strategy that produced a decision.
type Tier string

const (
	TierClassifier Tier = "classifier"
	TierRule       Tier = "rule"
	TierFallback   Tier = "fallback"
)

// DefaultTarget is the safe-default routing target.
const DefaultTarget = "general_inquiry"

var (
	ErrInvalidClassification = errors.New("invalid classification")
	ErrLowConfidence         = errors.New("classification below minimum confidence")
	ErrNoRuleMatch           = errors.New("no rule matched")
	errNoClassifier          = errors.New("no classifier configured")
)

// Classification is the raw answer from a Classifier.
type Classification struct {
	Target     string   `json:"target"`
	Thought    string   `json:"thought"`
	Confidence float64  `json:"confidence"`
	Priority   Priority `json:"priority"`
}

// Classifier is the only outbound capability the routing core uses.
// Implementations must honor ctx cancellation.
type Classifier interface {
	Classify(ctx context.Context, prompt, userInput string) (Classification, error)
}

// Rule is a keyword rule for the deterministic tier. Rules are evaluated in
// slice order.
type Rule struct {
	Name             string   `json:"name" yaml:"name"`
	Keywords         []string `json:"keywords" yaml:"keywords"`
	NegativeKeywords []string `json:"negative_keywords,omitempty" yaml:"negative_keywords"`
	Priority         Priority `json:"priority,omitempty" yaml:"priority"`
	Emergency        bool     `json:"emergency,omitempty" yaml:"emergency"`
}

// Request is one routing question.
type Request struct {
	Trade     string
	UserInput string
	Rules     []Rule
	// Prompt overrides the prompt built from Trade and Rules.
	Prompt        string
	MinConfidence float64
}

// Decision is the routing answer. Confidence is always finite and in [0,1]
// and Target is never empty.
type Decision struct {
	Target       string   `json:"target"`
	Thought      string   `json:"thought,omitempty"`
	Confidence   float64  `json:"confidence"`
	Priority     Priority `json:"priority"`
	Success      bool     `json:"success"`
	FallbackUsed bool     `json:"fallback_used"`
	Tier         Tier     `json:"tier"`
	Attempts     int      `json:"attempts"`
	Reason       string   `json:"reason,omitempty"`
}

// Options bound the classifier tier.
type Options struct {
	Attempts   int
	Timeout    time.Duration
	Budget     time.Duration
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultOptions returns the production classifier bounds.
func DefaultOptions() Options {
	return Options{
		Attempts:   2,
		Timeout:    1500 * time.Millisecond,
		Budget:     5 * time.Second,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Budget <= 0 {
		o.Budget = d.Budget
	}
	if o.Backoff <= 0 {
		o.Backoff = d.Backoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.MaxBackoff < o.Backoff {
		o.MaxBackoff = o.Backoff
	}
	return o
}

type strategy struct {
	tier Tier
	run  func(ctx context.Context, req Request) (Decision, error)
}

// Router runs the fallback chain.
type Router struct {
	classifier Classifier
	opts       Options
	logger     *slog.Logger
	strategies []strategy
}

// New creates a router. classifier may be nil, in which case every decision
// comes from the deterministic tiers.
func New(classifier Classifier, opts Options, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		classifier: classifier,
		opts:       opts.withDefaults(),
		logger:     logger,
	}
	r.strategies = []strategy{
		{tier: TierClassifier, run: r.classify},
		{tier: TierRule, run: matchRules},
		{tier: TierFallback, run: safeDefault},
	}
	return r
}

// Route returns a decision for req. It never panics and never returns an
// invalid decision; the overall time spent is capped by Options.Budget.
func (r *Router) Route(ctx context.Context, req Request) Decision {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Budget)
	defer cancel()

	if req.Prompt == "" {
		req.Prompt = BuildPrompt(req.Trade, req.Rules)
	}

	attempts := 0
	var reasons []string
	for _, s := range r.strategies {
		dec, err := r.runStrategy(ctx, s, req)
		attempts += dec.Attempts
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", s.tier, err))
			r.logger.Debug("routing tier skipped", "tier", s.tier, "error", err)
			continue
		}
		dec, err = finalize(dec)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", s.tier, err))
			continue
		}
		dec.Attempts = attempts
		if dec.Tier != TierClassifier {
			dec.FallbackUsed = true
			if dec.Reason == "" && len(reasons) > 0 {
				dec.Reason = strings.Join(reasons, "; ")
			}
		}
		return dec
	}

	// Only reachable if the safe default itself failed.
	r.logger.Error("every routing tier failed", "reasons", reasons)
	return Decision{
		Target:       DefaultTarget,
		Confidence:   safeConfidence,
		Priority:     PriorityNormal,
		FallbackUsed: true,
		Tier:         TierFallback,
		Attempts:     attempts,
		Reason:       strings.Join(reasons, "; "),
	}
}

func (r *Router) runStrategy(ctx context.Context, s strategy, req Request) (dec Decision, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("routing tier panicked", "tier", s.tier, "panic", p)
			dec, err = Decision{}, fmt.Errorf("panic: %v", p)
		}
	}()
	return s.run(ctx, req)
}

// finalize checks a tier's decision and fills in defaults.
func finalize(d Decision) (Decision, error) {
	d.Target = strings.TrimSpace(d.Target)
	if d.Target == "" {
		return d, fmt.Errorf("%w: empty target", ErrInvalidClassification)
	}
	if math.IsNaN(d.Confidence) || math.IsInf(d.Confidence, 0) {
		return d, fmt.Errorf("%w: confidence %v", ErrInvalidClassification, d.Confidence)
	}
	d.Confidence = math.Max(0, math.Min(1, d.Confidence))
	if d.Priority == "" {
		d.Priority = PriorityNormal
	}
	return d, nil
}

// safeDefault is the last tier. It only inspects the input for emergency
// language.
func safeDefault(_ context.Context, req Request) (Decision, error) {
	priority := PriorityNormal
	if emotion.IsEmergency(req.UserInput) {
		priority = PriorityEmergency
	}
	return Decision{
		Target:     DefaultTarget,
		Thought:    "no confident classification; defaulting to general inquiry",
		Confidence: safeConfidence,
		Priority:   priority,
		Success:    false,
		Tier:       TierFallback,
	}, nil
}

const safeConfidence = 0.2
