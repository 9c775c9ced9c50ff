package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/internal/config"
	"github.com/MikaYeghi/agent-first/internal/logging"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
)

// loadConfig writes body to a config file and loads it the way the CLI does.
func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentorg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	return cfg
}

func graphPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "chat.yaml"))
	require.NoError(t, err)
	return p
}

func replyOracle(text string) *memory.Oracle {
	o := memory.NewOracle()
	o.Responder = func(context.Context, string) (string, error) { return text, nil }
	return o
}

func handlerNames(st *Stack) []string {
	var names []string
	for _, d := range st.Engine.Handlers() {
		names = append(names, d.Name)
	}
	return names
}

func TestNewStack_RequiresGraph(t *testing.T) {
	cfg := loadConfig(t, "oracle:\n  provider: none\n")
	_, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{})
	assert.ErrorContains(t, err, "no graph configured")
}

func TestNewStack_MemoryDefaults(t *testing.T) {
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n")
	st, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("sure")})
	require.NoError(t, err)
	defer st.Close(context.Background())

	names := handlerNames(st)
	assert.Contains(t, names, "MessageWorker")
	assert.Contains(t, names, "DefaultWorker")
	assert.Contains(t, names, "DefaultAgent")
	assert.NotContains(t, names, "RAGWorker")
	assert.NotContains(t, names, "SearchWorker")
	assert.NotNil(t, st.Metrics)

	res, err := st.Engine.Converse(t.Context(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "Hi, how can I help?", res.Answer)

	res, err = st.Engine.Converse(t.Context(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "sure", res.Answer)
}

func TestNewStack_RetrievalAndSearch(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n"+
		"retrieval:\n  path: "+filepath.Join(dir, "index.db")+"\n"+
		"search:\n  api_key: test-key\n")
	st, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	require.NoError(t, err)
	defer st.Close(context.Background())

	names := handlerNames(st)
	assert.Contains(t, names, "RAGWorker")
	assert.Contains(t, names, "RagMsgWorker")
	assert.Contains(t, names, "SearchWorker")
}

func TestNewStack_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n"+
		"store:\n  driver: redis\n  redis:\n    addr: "+mr.Addr()+"\n")
	st, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	require.NoError(t, err)
	defer st.Close(context.Background())

	_, err = st.Engine.Converse(t.Context(), "r1", "")
	require.NoError(t, err)
	assert.True(t, mr.Exists("agentorg:state:r1"))

	ids, err := st.Engine.ListSessions(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestNewStack_FileStore(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n"+
		"store:\n  driver: file\n  path: "+dir+"\n")
	st, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	require.NoError(t, err)
	defer st.Close(context.Background())

	_, err = st.Engine.Converse(t.Context(), "f1", "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "f1.json"))
}

func TestNewStack_BadGraphReleasesResources(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes:\n  - - a\n    - handler: Nope\nedges: []\n"), 0o644))
	cfg := loadConfig(t, "graph: "+bad+"\n")
	_, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	assert.Error(t, err)
}

func TestNewStack_EncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n"+
		"store:\n  driver: file\n  path: "+dir+"\n  encryption_key: "+key+"\n")
	st, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	require.NoError(t, err)
	defer st.Close(context.Background())

	_, err = st.Engine.Converse(t.Context(), "e1", "")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "e1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "how can I help")

	state, err := st.Engine.Session(t.Context(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "talk", state.CurrentNodeID)
}

func TestNewStack_BadEncryptionKey(t *testing.T) {
	cfg := loadConfig(t, "graph: "+graphPath(t)+"\n"+
		"store:\n  encryption_key: c2hvcnQ=\n")
	_, err := NewStack(t.Context(), cfg, logging.NewNop(), BuildOptions{Oracle: replyOracle("ok")})
	assert.ErrorContains(t, err, "store.encryption_key")
}
