package graph_test

import (
	"fmt"
	"testing"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type lookup map[string]bool

func (l lookup) Has(name string) bool { return l[name] }

var builtins = lookup{
	"MessageWorker":  true,
	"RAGWorker":      true,
	"DatabaseWorker": true,
	"DefaultWorker":  true,
}

func TestLoadFile_JSONTaskGraph(t *testing.T) {
	g, err := graph.LoadFile("testdata/taskgraph.json", builtins)
	require.NoError(t, err)

	start := g.Start()
	assert.Equal(t, "0", start.ID)
	assert.Equal(t, domain.NodeStart, start.Kind)
	assert.Equal(t, "MessageWorker", start.Handler)
	assert.Equal(t, "Hello! I'm your assistant. How can I help you today?", start.Value())

	end, err := g.NodeAt("3")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeTerminal, end.Kind)

	out := g.Outgoing("0")
	require.Len(t, out, 3)
	assert.Equal(t, "User has product questions", out[0].Intent)
	assert.Equal(t, "", out[2].Intent, "intent none is dropped")

	next, ok := g.Next("0", map[string]any{"intent": "User wants to book a demo"})
	assert.True(t, ok)
	assert.Equal(t, "2", next)

	next, ok = g.Next("0", nil)
	assert.True(t, ok)
	assert.Equal(t, "1", next, "the unconditional edge is the default")

	_, ok = g.Next("1", map[string]any{})
	assert.False(t, ok)

	assert.Equal(t, []string{"MessageWorker", "RAGWorker", "DatabaseWorker"}, g.Handlers())

	assert.Equal(t, []string{"User has product questions", "User wants to book a demo"}, g.Intents("0"))
	assert.Empty(t, g.Intents("1"))
	assert.Nil(t, g.Intents("missing"))
}

func TestLoadFile_YAML(t *testing.T) {
	g, err := graph.LoadFile("testdata/support.yaml", builtins)
	require.NoError(t, err)

	assert.Equal(t, "start", g.Start().ID)
	assert.Equal(t, "Welcome to support.", g.Start().Value())

	triage, err := g.NodeAt("triage")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeTask, triage.Kind)
	assert.Equal(t, "", triage.Handler)
	assert.Equal(t, "Work out what the user needs", triage.Task())

	next, ok := g.Next("triage", map[string]any{"resolved": "yes"})
	assert.True(t, ok)
	assert.Equal(t, "done", next)
}

func TestNodeAt_NotFound(t *testing.T) {
	g, err := graph.LoadFile("testdata/support.yaml", builtins)
	require.NoError(t, err)

	_, err = g.NodeAt("nowhere")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{
			name:    "no start node",
			doc:     `{"nodes": [["a", {"attribute": {}}]], "edges": []}`,
			problem: "no start node",
		},
		{
			name:    "two start nodes",
			doc:     `{"nodes": [["a", {"type": "start"}], ["b", {"type": "start"}]], "edges": []}`,
			problem: "multiple start nodes: a, b",
		},
		{
			name:    "dangling edge",
			doc:     `{"nodes": [["a", {"type": "start"}]], "edges": [["a", "ghost"]]}`,
			problem: `edge 0 (a -> ghost): unknown node "ghost"`,
		},
		{
			name:    "unknown handler",
			doc:     `{"nodes": [["a", {"type": "start", "resource": {"name": "Nope"}}]], "edges": []}`,
			problem: `node "a": unknown handler "Nope"`,
		},
		{
			name:    "duplicate id",
			doc:     `{"nodes": [["a", {"type": "start"}], ["a", {}]], "edges": []}`,
			problem: `duplicate node id "a"`,
		},
		{
			name:    "bad condition",
			doc:     `{"nodes": [["a", {"type": "start"}], ["b", {}]], "edges": [["a", "b", {"condition": "x >"}]]}`,
			problem: "condition",
		},
		{
			name:    "bad json",
			doc:     `{"nodes": [`,
			problem: "decode json",
		},
		{
			name:    "bad node shape",
			doc:     `{"nodes": [["a"]], "edges": []}`,
			problem: "want [id, spec]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Load([]byte(tt.doc), graph.FormatJSON, "inline", builtins)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedGraph)

			var mge *domain.MalformedGraphError
			require.ErrorAs(t, err, &mge)
			assert.Contains(t, mge.Error(), tt.problem)
		})
	}
}

func TestLoad_NumericIDs(t *testing.T) {
	doc := `{"nodes": [[0, {"type": "start", "attribute": {"value": "hi"}}], [1, {}]], "edges": [[0, 1, {}]]}`
	g, err := graph.Load([]byte(doc), graph.FormatJSON, "inline", nil)
	require.NoError(t, err)

	next, ok := g.Next("0", nil)
	assert.True(t, ok)
	assert.Equal(t, "1", next)
}

func TestBuild_EdgesKeepDeclaredOrder(t *testing.T) {
	def := &graph.Definition{
		Nodes: []domain.Node{
			{ID: "s", Kind: domain.NodeStart},
			{ID: "a"},
			{ID: "b"},
		},
		Edges: []domain.Edge{
			{From: "s", To: "a", Condition: "has(x)"},
			{From: "s", To: "b"},
			{From: "s", To: "a"},
		},
	}
	g, err := graph.Build(def, "def", nil)
	require.NoError(t, err)

	next, _ := g.Next("s", map[string]any{})
	assert.Equal(t, "b", next)
	next, _ = g.Next("s", map[string]any{"x": 1})
	assert.Equal(t, "a", next)
	assert.Len(t, g.Edges(), 3)
}

// genDefinition draws a graph with starts Start nodes and, when dangling is
// set, one edge pointing at a node that does not exist.
func genDefinition(t *rapid.T, starts int, dangling bool) *graph.Definition {
	n := rapid.IntRange(max(starts, 1), 8).Draw(t, "nodes")
	def := &graph.Definition{}
	for i := 0; i < n; i++ {
		kind := domain.NodeTask
		if i < starts {
			kind = domain.NodeStart
		} else if rapid.Bool().Draw(t, fmt.Sprintf("terminal%d", i)) {
			kind = domain.NodeTerminal
		}
		def.Nodes = append(def.Nodes, domain.Node{ID: fmt.Sprintf("n%d", i), Kind: kind})
	}
	edges := rapid.IntRange(0, 12).Draw(t, "edges")
	for i := 0; i < edges; i++ {
		from := rapid.IntRange(0, n-1).Draw(t, fmt.Sprintf("from%d", i))
		to := rapid.IntRange(0, n-1).Draw(t, fmt.Sprintf("to%d", i))
		def.Edges = append(def.Edges, domain.Edge{From: fmt.Sprintf("n%d", from), To: fmt.Sprintf("n%d", to)})
	}
	if dangling {
		def.Edges = append(def.Edges, domain.Edge{From: "n0", To: "missing"})
	}
	return def
}

func TestBuild_WellFormedGraphsLoad(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		def := genDefinition(t, 1, false)
		g, err := graph.Build(def, "gen", nil)
		if err != nil {
			t.Fatalf("well-formed graph rejected: %v", err)
		}
		if g.Start().Kind != domain.NodeStart {
			t.Fatalf("start node has kind %s", g.Start().Kind)
		}
	})
}

func TestBuild_IllFormedGraphsFail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		starts := rapid.SampledFrom([]int{0, 1, 2, 3}).Draw(t, "starts")
		dangling := rapid.Bool().Draw(t, "dangling")
		if starts == 1 && !dangling {
			dangling = true
		}
		_, err := graph.Build(genDefinition(t, starts, dangling), "gen", nil)
		if err == nil {
			t.Fatalf("ill-formed graph (starts=%d dangling=%v) accepted", starts, dangling)
		}
		var mge *domain.MalformedGraphError
		if !assert.ErrorAs(t, err, &mge) {
			t.Fatalf("want MalformedGraphError, got %T", err)
		}
	})
}
