package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/pkg/adapters/anthropic"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func TestOracle_Complete(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       got.Model,
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "Message"},
				{"type": "text", "text": "Worker"},
			},
			"usage": map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	oracle := anthropic.New(func(o *anthropic.Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
		o.MaxTokens = 64
	})

	answer, err := oracle.Complete(context.Background(), ports.Prompt{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "MessageWorker", answer)

	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, "a", got.Messages[0].Content[0].Text)
	assert.Equal(t, "b", got.Messages[0].Content[1].Text)
}

func TestOracle_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"down"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	oracle := anthropic.New(func(o *anthropic.Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
	})
	_, err := oracle.Complete(context.Background(), ports.Prompt{"hi"})
	assert.ErrorContains(t, err, "anthropic api error")
}
