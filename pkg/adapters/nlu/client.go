// Package nlu provides intent and slot extractors: a client for a remote NLU
// service, and one that asks the oracle for a JSON answer.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Client calls a remote NLU service. The service receives
// {"text", "history", "intents", "slots"} and answers {"intent", "slots"}.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for endpoint. A nil hc uses a 30s timeout client.
func NewClient(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: hc}
}

type classifyRequest struct {
	Text    string           `json:"text"`
	History []domain.Message `json:"history,omitempty"`
	Intents []string         `json:"intents,omitempty"`
	Slots   []string         `json:"slots,omitempty"`
}

// Classify implements ports.IntentClassifier.
func (c *Client) Classify(ctx context.Context, utterance string, ic ports.IntentContext) (domain.Intent, error) {
	body, err := json.Marshal(classifyRequest{
		Text:    utterance,
		History: ic.History,
		Intents: ic.Intents,
		Slots:   ic.Slots,
	})
	if err != nil {
		return domain.Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("nlu request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Intent{}, fmt.Errorf("nlu service returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var intent domain.Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return domain.Intent{}, fmt.Errorf("decode nlu response: %w", err)
	}
	if intent.Slots == nil {
		intent.Slots = map[string]any{}
	}
	return intent, nil
}
