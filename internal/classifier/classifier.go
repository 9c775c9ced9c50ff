// Package classifier implements the bounded-retry, oracle-backed selection of
// one named candidate out of a described set.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

const tracerName = "github.com/MikaYeghi/agent-first/internal/classifier"

// Request describes one selection.
type Request struct {
	// Purpose labels the selection in logs, traces and metrics ("handler", "delegate", ...).
	Purpose string

	Goal       string
	History    []domain.Message
	UserText   string
	Candidates []domain.HandlerDescriptor

	// MaxAttempts is the number of oracle calls allowed. Values below 1 count as 1.
	MaxAttempts int

	// Fallback is returned when no attempt names a candidate.
	Fallback string

	// Template renders the prompt from a prompts.Choice. Defaults to prompts.ChooseHandler.
	Template *template.Template
}

// Classifier asks an oracle to pick a candidate by name.
type Classifier struct {
	oracle  ports.Oracle
	budget  int
	timeout time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	tracer  trace.Tracer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithContextBudget sets the maximum size, in runes, of a single prompt chunk.
func WithContextBudget(runes int) Option {
	return func(c *Classifier) {
		c.budget = runes
	}
}

// WithAttemptTimeout bounds each oracle call. A timed out call is a failed attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers hooks notified after every selection.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Classifier) {
		c.hooks = hooks
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Classifier) {
		c.tracer = t
	}
}

// New creates a Classifier backed by oracle.
func New(oracle ports.Oracle, opts ...Option) *Classifier {
	c := &Classifier{
		oracle: oracle,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Budget returns the configured chunk budget, in runes.
func (c *Classifier) Budget() int {
	return c.budget
}

// Choose runs the selection. It only fails when ctx is done, when the prompt
// cannot be rendered, or when every attempt failed and no fallback is set.
func (c *Classifier) Choose(ctx context.Context, req Request) (domain.ClassificationResult, error) {
	ctx, span := c.tracer.Start(ctx, "classifier.choose", trace.WithAttributes(
		attribute.String("classifier.purpose", req.Purpose),
		attribute.Int("classifier.candidates", len(req.Candidates)),
	))
	defer span.End()

	maxAttempts := max(req.MaxAttempts, 1)

	if len(req.Candidates) == 0 {
		return c.finish(ctx, span, req, domain.ClassificationResult{Chosen: req.Fallback, Fallback: true})
	}

	tmpl := req.Template
	if tmpl == nil {
		tmpl = prompts.ChooseHandler
	}
	text, err := prompts.Render(tmpl, prompts.NewChoice(req.Goal, prompts.FormatChat(req.History, req.UserText), req.Candidates))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return domain.ClassificationResult{}, fmt.Errorf("render %s prompt: %w", req.Purpose, err)
	}
	prompt := prompts.Chunk(text, c.budget)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		answer, err := c.complete(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "cancelled")
				return domain.ClassificationResult{}, ctx.Err()
			}
			c.logger.Warn("classifier attempt failed",
				"purpose", req.Purpose,
				"attempt", attempt,
				"timeout", errors.Is(err, context.DeadlineExceeded),
				"err", err)
			continue
		}

		if name, ok := Match(answer, req.Candidates); ok {
			return c.finish(ctx, span, req, domain.ClassificationResult{Chosen: name, Attempts: attempt})
		}
		c.logger.Debug("classifier answer named no candidate", "purpose", req.Purpose, "attempt", attempt)
	}

	if req.Fallback == "" {
		err := fmt.Errorf("%w: %d attempts failed and no fallback is configured", domain.ErrOracleUnavailable, maxAttempts)
		span.RecordError(err)
		span.SetStatus(codes.Error, "exhausted")
		return domain.ClassificationResult{Attempts: maxAttempts}, err
	}

	c.logger.Info("classifier fell back", "purpose", req.Purpose, "fallback", req.Fallback, "attempts", maxAttempts)
	return c.finish(ctx, span, req, domain.ClassificationResult{Chosen: req.Fallback, Attempts: maxAttempts, Fallback: true})
}

func (c *Classifier) complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	if c.oracle == nil {
		return "", fmt.Errorf("%w: no oracle configured", domain.ErrOracleUnavailable)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	answer, err := c.oracle.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	return answer, nil
}

func (c *Classifier) finish(ctx context.Context, span trace.Span, req Request, res domain.ClassificationResult) (domain.ClassificationResult, error) {
	span.SetAttributes(
		attribute.String("classifier.chosen", res.Chosen),
		attribute.Int("classifier.attempts", res.Attempts),
		attribute.Bool("classifier.fallback", res.Fallback),
	)
	if c.hooks.OnClassification != nil {
		c.hooks.OnClassification(ctx, &domain.ClassificationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventClassification},
			Purpose:   req.Purpose,
			Chosen:    res.Chosen,
			Attempts:  res.Attempts,
			Fallback:  res.Fallback,
		})
	}
	return res, nil
}

// Match returns the first candidate, in enumeration order, whose name occurs
// in answer. Matching is case-sensitive.
func Match(answer string, candidates []domain.HandlerDescriptor) (string, bool) {
	for _, c := range candidates {
		if c.Name != "" && strings.Contains(answer, c.Name) {
			return c.Name, true
		}
	}
	return "", false
}
