package nlu_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/adapters/nlu"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

var (
	_ ports.IntentClassifier = (*nlu.Client)(nil)
	_ ports.IntentClassifier = (*nlu.OracleClassifier)(nil)
)

func TestClient_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text    string   `json:"text"`
			Intents []string `json:"intents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "book Hamlet", body.Text)
		assert.Equal(t, []string{"book"}, body.Intents)
		_, _ = w.Write([]byte(`{"intent":"book","slots":{"name":"Hamlet"}}`))
	}))
	defer srv.Close()

	intent, err := nlu.NewClient(srv.URL, nil).Classify(context.Background(), "book Hamlet", ports.IntentContext{Intents: []string{"book"}})
	require.NoError(t, err)
	assert.Equal(t, domain.Intent{Name: "book", Slots: map[string]any{"name": "Hamlet"}}, intent)
}

func TestClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := nlu.NewClient(srv.URL, nil).Classify(context.Background(), "x", ports.IntentContext{})
	assert.ErrorContains(t, err, "502")
}

func TestOracleClassifier(t *testing.T) {
	oracle := memory.NewOracle("Sure! {\"intent\": \"find show\", \"slots\": {\"city\": \"Paris\"}}")
	c := nlu.NewOracleClassifier(oracle, 0)

	intent, err := c.Classify(context.Background(), "what's on in Paris", ports.IntentContext{
		History: []domain.Message{{Role: domain.RoleAssistant, Content: "Hi"}},
		Slots:   []string{"city"},
	})
	require.NoError(t, err)
	assert.Equal(t, "find show", intent.Name)
	assert.Equal(t, "Paris", intent.Slots["city"])

	prompt := oracle.Prompts()[0].String()
	assert.Contains(t, prompt, "Only extract these slots: city.")
	assert.Contains(t, prompt, "ASSISTANT: Hi\nUSER: what's on in Paris")
	assert.NotContains(t, prompt, "The intent must be one of")
}

func TestOracleClassifier_Failures(t *testing.T) {
	oracle := memory.NewOracle("no json here")
	oracle.Enqueue(memory.Reply{Err: errors.New("down")})
	c := nlu.NewOracleClassifier(oracle, 0)

	_, err := c.Classify(context.Background(), "x", ports.IntentContext{})
	assert.ErrorContains(t, err, "no JSON object")

	_, err = c.Classify(context.Background(), "x", ports.IntentContext{})
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestParseIntent_EmptySlots(t *testing.T) {
	intent, err := nlu.ParseIntent(`{"intent":"greet"}`)
	require.NoError(t, err)
	assert.NotNil(t, intent.Slots)
}
