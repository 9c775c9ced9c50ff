package graph

import (
	"fmt"
	"strings"
	"unicode"
)

// Predicate reports whether an edge may be taken given the current slots.
type Predicate func(slots map[string]any) bool

// Compile parses a condition expression. An empty expression compiles to a
// nil Predicate, which always matches.
//
// Grammar:
//
//	expr    := and { "||" and }
//	and     := unary { "&&" unary }
//	unary   := "!" unary | primary
//	primary := "(" expr ")" | "has(" key ")" | key ("==" | "!=") value
//	value   := 'quoted' | "quoted" | bare-word
//
// Comparisons use the string form of the slot value. A missing slot is never
// equal to anything.
func Compile(expr string) (Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return pred, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j == len(rs) {
				return nil, fmt.Errorf("unterminated string at position %d", i)
			}
			toks = append(toks, token{kind: tokString, text: string(rs[i+1 : j]), pos: i})
			i = j + 1
		case i+1 < len(rs) && isTwoCharOp(string(rs[i:i+2])):
			toks = append(toks, token{kind: tokOp, text: string(rs[i : i+2]), pos: i})
			i += 2
		case r == '!' || r == '(' || r == ')':
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case isWordRune(r):
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[i:j]), pos: i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}
	return toks, nil
}

func isTwoCharOp(s string) bool {
	return s == "==" || s == "!=" || s == "&&" || s == "||"
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) done() bool { return p.i >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.i]
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return !p.done() && t.kind == tokOp && t.text == text
}

func (p *parser) expectOp(text string) error {
	if !p.isOp(text) {
		return p.errorf("expected %q", text)
	}
	p.i++
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.done() {
		return fmt.Errorf("%s at end of expression", msg)
	}
	return fmt.Errorf("%s at position %d", msg, p.peek().pos)
}

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.i++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(slots map[string]any) bool { return l(slots) || r(slots) }
	}
	return left, nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.i++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(slots map[string]any) bool { return l(slots) && r(slots) }
	}
	return left, nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.isOp("!") {
		p.i++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(slots map[string]any) bool { return !inner(slots) }, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	if p.isOp("(") {
		p.i++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	t := p.peek()
	if p.done() || t.kind != tokWord {
		return nil, p.errorf("expected slot name")
	}
	p.i++

	if t.text == "has" && p.isOp("(") {
		p.i++
		key := p.peek()
		if p.done() || key.kind != tokWord {
			return nil, p.errorf("expected slot name")
		}
		p.i++
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return hasSlot(key.text), nil
	}

	var negate bool
	switch {
	case p.isOp("=="):
	case p.isOp("!="):
		negate = true
	default:
		return nil, p.errorf("expected == or != after %q", t.text)
	}
	p.i++

	v := p.peek()
	if p.done() || v.kind == tokOp {
		return nil, p.errorf("expected value")
	}
	p.i++

	eq := slotEquals(t.text, v.text)
	if negate {
		return func(slots map[string]any) bool { return !eq(slots) }, nil
	}
	return eq, nil
}

func hasSlot(key string) Predicate {
	return func(slots map[string]any) bool {
		v, ok := slots[key]
		if !ok || v == nil {
			return false
		}
		if s, isString := v.(string); isString {
			return s != ""
		}
		return true
	}
}

func slotEquals(key, want string) Predicate {
	return func(slots map[string]any) bool {
		v, ok := slots[key]
		if !ok || v == nil {
			return false
		}
		return fmt.Sprint(v) == want
	}
}
