package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// Event is one JSON line written by JSONHandler.
type Event struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Node       string         `json:"node,omitempty"`
	Terminated bool           `json:"terminated,omitempty"`
	Slots      map[string]any `json:"slots,omitempty"`
	Name       string         `json:"name,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
}

// Event types.
const (
	EventAnswer = "answer"
	EventSignal = "signal"
	EventSystem = "system"
)

// JSONHandler implements IOHandler over JSON Lines. Each input line is a JSON
// string, an object with a "text" field, or plain text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder

	mu sync.Mutex
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) emit(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(ev)
}

// Output writes an answer event.
func (h *JSONHandler) Output(ctx context.Context, answer string, state *domain.State) error {
	ev := Event{Type: EventAnswer, Text: answer}
	if state != nil {
		ev.Node = state.CurrentNodeID
		ev.Terminated = state.Terminated()
		ev.Slots = state.Slots
	}
	return h.emit(ev)
}

// Input reads one line.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	line, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return SanitizeInput(decodeInput(strings.TrimSpace(line)))
}

func decodeInput(line string) string {
	var s string
	if err := json.Unmarshal([]byte(line), &s); err == nil {
		return s
	}
	var msg struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Text != nil {
		return *msg.Text
	}
	return line
}

// Signal writes a signal event.
func (h *JSONHandler) Signal(ctx context.Context, name string, args map[string]any) error {
	return h.emit(Event{Type: EventSignal, Name: name, Args: args})
}

// SystemOutput writes a system event.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(Event{Type: EventSystem, Text: msg})
}
