package domain

// HandlerDescriptor identifies a handler in the registry and in classification prompts.
type HandlerDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// HandlerOutput is the result of a handler execution.
type HandlerOutput struct {
	Answer string         `json:"answer"`
	Slots  map[string]any `json:"slots,omitempty"`
}

// ClassificationResult is the outcome of one classifier step.
type ClassificationResult struct {
	Chosen   string `json:"chosen"`
	Attempts int    `json:"attempts"`
	// Fallback is true when no attempt matched and the fallback name was returned.
	Fallback bool `json:"fallback"`
}

// IntentSlot holds the intent of the last utterance. Edge intents are
// conditions on it.
const IntentSlot = "intent"

// Intent is the output of an intent/slot extractor.
type Intent struct {
	Name  string         `json:"intent"`
	Slots map[string]any `json:"slots,omitempty"`
}

// Document is a passage returned by a retriever.
type Document struct {
	ID      string  `json:"id"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResult is a single hit of an external search.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
