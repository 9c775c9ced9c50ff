package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/MikaYeghi/agent-first/internal/prompts"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

var extractPrompt = template.Must(template.New("extract_intent").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Extract the user's intent and any slot values from the last user message.
{{if .Intents}}The intent must be one of: {{join .Intents ", "}}.
{{end}}{{if .Slots}}Only extract these slots: {{join .Slots ", "}}.
{{end}}Conversation:
{{.Chat}}
Reply with a single JSON object of the form {"intent": "<intent>", "slots": {"<name>": "<value>"}} and nothing else.
`))

// OracleClassifier extracts intents by asking the oracle for JSON.
type OracleClassifier struct {
	oracle ports.Oracle
	budget int
}

// NewOracleClassifier creates an extractor that chunks its prompt to budget runes.
func NewOracleClassifier(oracle ports.Oracle, budget int) *OracleClassifier {
	return &OracleClassifier{oracle: oracle, budget: budget}
}

// Classify implements ports.IntentClassifier.
func (c *OracleClassifier) Classify(ctx context.Context, utterance string, ic ports.IntentContext) (domain.Intent, error) {
	text, err := prompts.Render(extractPrompt, map[string]any{
		"Intents": ic.Intents,
		"Slots":   ic.Slots,
		"Chat":    prompts.FormatChat(ic.History, utterance),
	})
	if err != nil {
		return domain.Intent{}, err
	}

	answer, err := c.oracle.Complete(ctx, prompts.Chunk(text, c.budget))
	if err != nil {
		return domain.Intent{}, fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	return ParseIntent(answer)
}

// ParseIntent decodes the first JSON object found in answer.
func ParseIntent(answer string) (domain.Intent, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return domain.Intent{}, fmt.Errorf("no JSON object in answer %q", answer)
	}

	var intent domain.Intent
	if err := json.Unmarshal([]byte(answer[start:end+1]), &intent); err != nil {
		return domain.Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	if intent.Slots == nil {
		intent.Slots = map[string]any{}
	}
	return intent, nil
}
