package domain

// Edge is a directed link between two nodes.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Intent is shorthand for the condition "intent == '<Intent>'".
	Intent string `json:"intent,omitempty" yaml:"intent,omitempty"`

	// Condition is an expression over slots, e.g. "has(city) && city != 'none'".
	// An edge without condition or intent always matches.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Unconditional reports whether the edge always matches.
func (e Edge) Unconditional() bool {
	return e.Condition == "" && e.Intent == ""
}
