// Package agents contains the built-in agent handlers. An agent picks another
// registered handler with the classifier and forwards the turn to it.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/MikaYeghi/agent-first/pkg/registry"
)

// DefaultAgentDescriptor registers the DefaultAgent.
var DefaultAgentDescriptor = domain.HandlerDescriptor{
	Name:        "DefaultAgent",
	Description: "Default Agent if there is no specific agent for the user's query",
}

// DefaultBaseChoice is the delegate used when classification names no candidate.
const DefaultBaseChoice = "MessageWorker"

// DefaultAgent delegates to the handler the classifier picks among every
// registered handler except itself.
type DefaultAgent struct {
	Name        string
	Registry    *registry.Registry
	Classifier  *classifier.Classifier
	MaxAttempts int
	BaseChoice  string
	Logger      *slog.Logger
}

// Options configures the DefaultAgent constructor.
type Options struct {
	MaxAttempts int
	BaseChoice  string
	Logger      *slog.Logger
}

// NewDefaultAgent returns the DefaultAgent constructor. Construction fails
// when the base choice is not registered.
func NewDefaultAgent(reg *registry.Registry, cls *classifier.Classifier, opts Options) ports.Constructor {
	return func() (ports.Handler, error) {
		if reg == nil || cls == nil {
			return nil, errors.New("default agent: registry and classifier are required")
		}
		base := opts.BaseChoice
		if base == "" {
			base = DefaultBaseChoice
		}
		if !reg.Has(base) {
			return nil, fmt.Errorf("default agent: base choice: %w: %s", domain.ErrUnknownHandler, base)
		}
		logger := opts.Logger
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		return &DefaultAgent{
			Name:        DefaultAgentDescriptor.Name,
			Registry:    reg,
			Classifier:  cls,
			MaxAttempts: opts.MaxAttempts,
			BaseChoice:  base,
			Logger:      logger,
		}, nil
	}
}

func (a *DefaultAgent) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	if in.Delegator == nil {
		return domain.HandlerOutput{}, errors.New("default agent: no delegator")
	}

	var (
		history []domain.Message
		text    string
	)
	if in.State != nil {
		history = in.State.History
		text = in.State.UserMessage.Text
	}
	goal := in.Node.Task()
	if goal == "" {
		goal = text
	}

	res, err := a.Classifier.Choose(ctx, classifier.Request{
		Purpose:     "delegate",
		Goal:        goal,
		History:     history,
		UserText:    text,
		Candidates:  a.Registry.ListAll(a.Name),
		MaxAttempts: a.MaxAttempts,
		Fallback:    a.BaseChoice,
	})
	if err != nil {
		return domain.HandlerOutput{}, err
	}
	a.Logger.Debug("agent delegating", "agent", a.Name, "delegate", res.Chosen, "attempts", res.Attempts)

	return in.Delegator.Delegate(ctx, res.Chosen, in)
}
