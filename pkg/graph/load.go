package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Format is the encoding of a graph document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// HandlerLookup reports whether a handler name is registered.
// *registry.Registry satisfies it.
type HandlerLookup interface {
	Has(name string) bool
}

// Definition is a decoded, not yet validated, graph.
type Definition struct {
	Nodes []domain.Node
	Edges []domain.Edge
}

// document mirrors the on-disk layout: nodes are [id, spec] pairs and edges
// are [from, to, spec] triples.
type document struct {
	Nodes [][]any `json:"nodes" yaml:"nodes"`
	Edges [][]any `json:"edges" yaml:"edges"`
}

type resourceSpec struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type nodeSpec struct {
	Type      string         `mapstructure:"type"`
	Handler   string         `mapstructure:"handler"`
	Resource  resourceSpec   `mapstructure:"resource"`
	Attribute map[string]any `mapstructure:"attribute"`
}

type edgeSpec struct {
	Intent    string `mapstructure:"intent"`
	Condition string `mapstructure:"condition"`
}

// LoadFile reads, parses and validates a graph document.
func LoadFile(path string, handlers HandlerLookup) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Load(data, FormatFromPath(path), path, handlers)
}

// Load parses and validates a graph document. Every failure is reported as a
// *domain.MalformedGraphError.
func Load(data []byte, format Format, source string, handlers HandlerLookup) (*Graph, error) {
	def, err := Parse(data, format)
	if err != nil {
		return nil, &domain.MalformedGraphError{Source: source, Problems: []string{err.Error()}}
	}
	return Build(def, source, handlers)
}

// Parse decodes a graph document without validating it.
func Parse(data []byte, format Format) (*Definition, error) {
	var doc document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	def := &Definition{}
	for i, raw := range doc.Nodes {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		def.Nodes = append(def.Nodes, n)
	}
	for i, raw := range doc.Edges {
		e, err := decodeEdge(raw)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		def.Edges = append(def.Edges, e)
	}
	return def, nil
}

func decodeNode(raw []any) (domain.Node, error) {
	if len(raw) != 2 {
		return domain.Node{}, fmt.Errorf("want [id, spec], got %d elements", len(raw))
	}
	id, err := decodeID(raw[0])
	if err != nil {
		return domain.Node{}, err
	}

	var spec nodeSpec
	if err := decodeSpec(raw[1], &spec); err != nil {
		return domain.Node{}, fmt.Errorf("node %q: %w", id, err)
	}

	kind := spec.Type
	if kind == "" {
		if t, ok := spec.Attribute["type"].(string); ok {
			kind = t
		}
	}

	handler := spec.Handler
	if handler == "" {
		handler = spec.Resource.Name
	}

	return domain.Node{
		ID:         id,
		Kind:       parseKind(kind),
		Handler:    handler,
		Attributes: spec.Attribute,
	}, nil
}

func decodeEdge(raw []any) (domain.Edge, error) {
	if len(raw) != 2 && len(raw) != 3 {
		return domain.Edge{}, fmt.Errorf("want [from, to, spec], got %d elements", len(raw))
	}
	from, err := decodeID(raw[0])
	if err != nil {
		return domain.Edge{}, fmt.Errorf("from: %w", err)
	}
	to, err := decodeID(raw[1])
	if err != nil {
		return domain.Edge{}, fmt.Errorf("to: %w", err)
	}

	var spec edgeSpec
	if len(raw) == 3 {
		if err := decodeSpec(raw[2], &spec); err != nil {
			return domain.Edge{}, fmt.Errorf("edge %s -> %s: %w", from, to, err)
		}
	}

	intent := strings.TrimSpace(spec.Intent)
	if strings.EqualFold(intent, "none") {
		intent = ""
	}

	return domain.Edge{From: from, To: to, Intent: intent, Condition: spec.Condition}, nil
}

func decodeSpec(raw any, out any) error {
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func decodeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case int:
		return fmt.Sprint(id), nil
	case float64:
		if id != float64(int64(id)) {
			return "", fmt.Errorf("node id %v is not an integer", id)
		}
		return fmt.Sprint(int64(id)), nil
	default:
		return "", fmt.Errorf("node id must be a string or integer, got %T", v)
	}
}

func parseKind(s string) domain.NodeKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return domain.NodeStart
	case "terminal", "end":
		return domain.NodeTerminal
	default:
		return domain.NodeTask
	}
}

// Build validates a definition and compiles it into a Graph. All problems are
// collected into a single *domain.MalformedGraphError. A nil handlers lookup
// skips handler validation.
func Build(def *Definition, source string, handlers HandlerLookup) (*Graph, error) {
	g := &Graph{
		source: source,
		index:  make(map[string]int, len(def.Nodes)),
		start:  -1,
	}
	var problems []string
	var starts []string

	for _, n := range def.Nodes {
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if _, dup := g.index[n.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		if n.Kind == "" {
			n.Kind = domain.NodeTask
		}
		if n.Kind == domain.NodeStart {
			starts = append(starts, n.ID)
			g.start = len(g.nodes)
		}
		if n.Handler != "" && handlers != nil && !handlers.Has(n.Handler) {
			problems = append(problems, fmt.Sprintf("node %q: unknown handler %q", n.ID, n.Handler))
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	switch len(starts) {
	case 0:
		problems = append(problems, "no start node")
	case 1:
	default:
		problems = append(problems, fmt.Sprintf("multiple start nodes: %s", strings.Join(starts, ", ")))
	}

	g.out = make([][]edge, len(g.nodes))
	for i, e := range def.Edges {
		from, okFrom := g.index[e.From]
		to, okTo := g.index[e.To]
		if !okFrom {
			problems = append(problems, fmt.Sprintf("edge %d (%s -> %s): unknown node %q", i, e.From, e.To, e.From))
		}
		if !okTo {
			problems = append(problems, fmt.Sprintf("edge %d (%s -> %s): unknown node %q", i, e.From, e.To, e.To))
		}

		match, err := Compile(edgeExpression(e))
		if err != nil {
			problems = append(problems, fmt.Sprintf("edge %d (%s -> %s): condition: %v", i, e.From, e.To, err))
			continue
		}
		if !okFrom || !okTo {
			continue
		}
		g.out[from] = append(g.out[from], edge{Edge: e, to: to, match: match})
		g.edges = append(g.edges, e)
	}

	if len(problems) > 0 {
		return nil, &domain.MalformedGraphError{Source: source, Problems: problems}
	}
	return g, nil
}

// edgeExpression folds the intent shorthand into the condition.
func edgeExpression(e domain.Edge) string {
	if e.Intent == "" {
		return e.Condition
	}
	intent := fmt.Sprintf("%s == '%s'", domain.IntentSlot, IntentValue(e.Intent))
	if strings.TrimSpace(e.Condition) == "" {
		return intent
	}
	return intent + " && (" + e.Condition + ")"
}

// IntentValue is the slot value an intent-labelled edge matches.
func IntentValue(intent string) string {
	return strings.ReplaceAll(intent, "'", "")
}
