package domain

import "maps"

// ConversationStatus defines whether a conversation still accepts turns.
type ConversationStatus string

const (
	StatusActive     ConversationStatus = "active"     // Accepting turns
	StatusTerminated ConversationStatus = "terminated" // A Terminal node was executed
)

// Message roles used in the conversation history.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Message is a single entry of the conversation history.
type Message struct {
	Role    string `json:"role" yaml:"role" mapstructure:"role"`
	Content string `json:"content" yaml:"content" mapstructure:"content"`
}

// UserMessage is the input of a single turn.
type UserMessage struct {
	Text string `json:"text"`
	// History is the history as perceived by the caller when the message was sent.
	History []Message `json:"history,omitempty"`
}

// State represents the snapshot of one conversation between turns.
type State struct {
	// SessionID identifies the conversation in stateful stores. Empty for stateless turns.
	SessionID string `json:"session_id,omitempty"`

	// CurrentNodeID is the node the next turn will execute.
	CurrentNodeID string `json:"current_node_id"`

	Status ConversationStatus `json:"status"`

	// TurnCount is the number of completed turns.
	TurnCount int `json:"turn_count"`

	// UserMessage is the message of the turn in progress (or the last completed one).
	UserMessage UserMessage `json:"user_message"`

	// Slots hold the values accumulated across turns.
	Slots map[string]any `json:"slots"`

	// History is the full message history, oldest first.
	History []Message `json:"history,omitempty"`

	// Path tracks the node ids visited, oldest first.
	Path []string `json:"path,omitempty"`
}

// NewState creates a clean state positioned at the start node.
func NewState(sessionID, startNodeID string) *State {
	return &State{
		SessionID:     sessionID,
		CurrentNodeID: startNodeID,
		Status:        StatusActive,
		Slots:         make(map[string]any),
		Path:          []string{startNodeID},
	}
}

// Terminated reports whether the conversation has ended.
func (s *State) Terminated() bool {
	return s.Status == StatusTerminated
}

// Clone returns a copy of the state that shares no maps or slices with s.
// Slot values are copied shallowly: nested values are replaced, never merged.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Slots = make(map[string]any, len(s.Slots))
	maps.Copy(c.Slots, s.Slots)
	c.History = append([]Message(nil), s.History...)
	c.Path = append([]string(nil), s.Path...)
	c.UserMessage.History = append([]Message(nil), s.UserMessage.History...)
	return &c
}

// Request is the input of the stateless Turn API.
type Request struct {
	Text        string         `json:"text"`
	ChatHistory []Message      `json:"chat_history"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is the output of the stateless Turn API.
type Response struct {
	Answer     string         `json:"answer"`
	Parameters map[string]any `json:"parameters"`
}

// TurnResult is what the stateful API returns after a committed turn.
type TurnResult struct {
	Answer string     `json:"answer"`
	State  *State     `json:"state"`
	Diff   *StateDiff `json:"diff,omitempty"`
}

// MergeSlots writes every update into dst in order. Later values overwrite
// earlier ones for the same key; nested values are replaced, never merged.
func MergeSlots(dst map[string]any, updates ...map[string]any) {
	for _, u := range updates {
		for k, v := range u {
			dst[k] = v
		}
	}
}
