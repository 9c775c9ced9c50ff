package workers

import (
	"context"
	"fmt"
	"maps"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// DatabaseWorkerDescriptor registers the DatabaseWorker.
var DatabaseWorkerDescriptor = domain.HandlerDescriptor{
	Name:        "DatabaseWorker",
	Description: "Help the user with actions on structured records, such as looking up, booking or cancelling reservations and orders",
}

// Slots written by the DatabaseWorker.
const (
	IntentSlot = domain.IntentSlot
	ActionSlot = "db_action"
)

const noAction = "none"

// DatabaseWorker extracts slots, picks a data-source action with the
// classifier, runs it and phrases the returned records.
type DatabaseWorker struct {
	Config
	Source      ports.DataSource
	NLU         ports.IntentClassifier
	Classifier  *classifier.Classifier
	MaxAttempts int
}

// NewDatabaseWorker returns the DatabaseWorker constructor. nlu is optional.
func NewDatabaseWorker(cfg Config, source ports.DataSource, nlu ports.IntentClassifier, cls *classifier.Classifier, maxAttempts int) ports.Constructor {
	return func() (ports.Handler, error) {
		if err := cfg.requireOracle(DatabaseWorkerDescriptor.Name); err != nil {
			return nil, err
		}
		if source == nil {
			return nil, fmt.Errorf("%s: %w: data source", DatabaseWorkerDescriptor.Name, ErrMissingDependency)
		}
		if cls == nil {
			cls = classifier.New(cfg.Oracle, classifier.WithContextBudget(cfg.Budget))
		}
		return &DatabaseWorker{
			Config:      cfg,
			Source:      source,
			NLU:         nlu,
			Classifier:  cls,
			MaxAttempts: maxAttempts,
		}, nil
	}
}

func (w *DatabaseWorker) Execute(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
	text := userText(in)
	extracted := make(map[string]any)
	goal := text

	var history []domain.Message
	if in.State != nil {
		history = in.State.History
	}

	if w.NLU != nil {
		intent, err := w.NLU.Classify(ctx, text, ports.IntentContext{History: history})
		switch {
		case err != nil && ctx.Err() != nil:
			return domain.HandlerOutput{}, ctx.Err()
		case err != nil:
			w.logger().Warn("intent extraction failed", "err", err)
		default:
			maps.Copy(extracted, intent.Slots)
			if intent.Name != "" {
				extracted[IntentSlot] = intent.Name
				goal = intent.Name + ": " + text
			}
		}
	}

	params := make(map[string]any)
	if in.State != nil {
		maps.Copy(params, in.State.Slots)
	}
	maps.Copy(params, extracted)

	res, err := w.Classifier.Choose(ctx, classifier.Request{
		Purpose:     "database_action",
		Goal:        goal,
		History:     history,
		UserText:    text,
		Candidates:  w.Source.Actions(),
		MaxAttempts: w.MaxAttempts,
		Fallback:    noAction,
		Template:    prompts.DatabaseAction,
	})
	if err != nil {
		return domain.HandlerOutput{}, err
	}

	if res.Fallback {
		answer, err := w.generate(ctx, prompts.Generator, prompts.Generation{Chat: chat(in)})
		if err != nil {
			return domain.HandlerOutput{}, err
		}
		return domain.HandlerOutput{Answer: answer, Slots: extracted}, nil
	}

	rows, err := w.Source.Run(ctx, res.Chosen, params)
	if err != nil {
		return domain.HandlerOutput{}, fmt.Errorf("action %s: %w", res.Chosen, err)
	}
	w.logger().Debug("database action ran", "action", res.Chosen, "rows", len(rows))

	answer, err := w.generate(ctx, prompts.DatabaseAnswer, prompts.Generation{
		Chat:    chat(in),
		Message: res.Chosen,
		Context: formatRows(rows),
	})
	if err != nil {
		return domain.HandlerOutput{}, err
	}

	extracted[ActionSlot] = res.Chosen
	return domain.HandlerOutput{Answer: answer, Slots: extracted}, nil
}
