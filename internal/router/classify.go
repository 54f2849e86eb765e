package router

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// classify is the classifier tier: bounded attempts, each with its own
// timeout, exponential backoff between attempts, all inside the caller's
// budget. Malformed answers are retried like transient errors; answers below
// the minimum confidence are not.
func (r *Router) classify(ctx context.Context, req Request) (Decision, error) {
	if r.classifier == nil {
		return Decision{}, errNoClassifier
	}

	var lastErr error
	made := 0
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, r.backoff(attempt-1)); err != nil {
				break
			}
		}
		made++
		c, err := r.callOnce(ctx, req)
		if err == nil {
			c, err = validate(c)
		}
		if err == nil {
			if c.Confidence < req.MinConfidence {
				return Decision{Attempts: made}, fmt.Errorf("%w: %.2f < %.2f (target %s)",
					ErrLowConfidence, c.Confidence, req.MinConfidence, c.Target)
			}
			return Decision{
				Target:     c.Target,
				Thought:    c.Thought,
				Confidence: c.Confidence,
				Priority:   c.Priority,
				Success:    true,
				Tier:       TierClassifier,
				Attempts:   made,
			}, nil
		}
		lastErr = err
		r.logger.Warn("classifier attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return Decision{Attempts: made}, fmt.Errorf("classifier failed after %d attempts: %w", made, lastErr)
}

// callOnce runs one classifier call in its own goroutine so a stuck
// implementation cannot hold the turn past the attempt timeout. The result
// channel is buffered; the goroutine never blocks on send.
func (r *Router) callOnce(ctx context.Context, req Request) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	type result struct {
		c   Classification
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("classifier panic: %v", p)}
			}
		}()
		c, err := r.classifier.Classify(ctx, req.Prompt, req.UserInput)
		ch <- result{c: c, err: err}
	}()

	select {
	case res := <-ch:
		return res.c, res.err
	case <-ctx.Done():
		return Classification{}, fmt.Errorf("classify: %w", ctx.Err())
	}
}

func (r *Router) backoff(n int) time.Duration {
	d := r.opts.Backoff << (n - 1)
	if d <= 0 || d > r.opts.MaxBackoff {
		return r.opts.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// validate checks the shape of a classifier answer and normalizes it.
func validate(c Classification) (Classification, error) {
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	if c.Target == "" {
		return c, fmt.Errorf("%w: empty target", ErrInvalidClassification)
	}
	if math.IsNaN(c.Confidence) || math.IsInf(c.Confidence, 0) || c.Confidence < 0 || c.Confidence > 1 {
		return c, fmt.Errorf("%w: confidence %v out of range", ErrInvalidClassification, c.Confidence)
	}
	switch p := Priority(strings.ToUpper(strings.TrimSpace(string(c.Priority)))); p {
	case "":
		c.Priority = PriorityNormal
	case PriorityNormal, PriorityHigh, PriorityEmergency:
		c.Priority = p
	default:
		return c, fmt.Errorf("%w: priority %q", ErrInvalidClassification, c.Priority)
	}
	return c, nil
}
