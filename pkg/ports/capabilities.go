package ports

import (
	"context"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// IntentContext is what an intent classifier may use besides the utterance.
type IntentContext struct {
	History []domain.Message
	// Intents restricts the answer to these names when non-empty.
	Intents []string
	// Slots are the slot names the caller is interested in.
	Slots []string
}

// IntentClassifier extracts an intent and slots from an utterance.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string, ic IntentContext) (domain.Intent, error)
}

// Retriever returns the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error)
}

// Searcher performs an external search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}

// DataSource exposes named actions over structured data.
type DataSource interface {
	// Actions describes the available actions, in a stable order.
	Actions() []domain.HandlerDescriptor
	// Run executes an action with slot values as parameters and returns the resulting rows.
	Run(ctx context.Context, action string, params map[string]any) ([]map[string]any, error)
}
