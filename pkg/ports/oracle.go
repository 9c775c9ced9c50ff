package ports

import "context"

// Prompt is a rendered prompt split into ordered chunks that each fit the
// oracle's input budget. Concatenating the chunks yields the full prompt.
type Prompt []string

// String joins the chunks back into the full prompt text.
func (p Prompt) String() string {
	n := 0
	for _, c := range p {
		n += len(c)
	}
	b := make([]byte, 0, n)
	for _, c := range p {
		b = append(b, c...)
	}
	return string(b)
}

// Oracle is the text-completion capability.
// Implementations submit the chunks in order as a single logical call.
type Oracle interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt Prompt) (string, error)

// Complete calls f(ctx, prompt).
func (f OracleFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}
