package domain

import (
	"reflect"
)

// StateDiff represents the changes a turn made to a conversation.
// It is serialized to JSON for partial updates on streaming clients.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string             `json:"current_node_id,omitempty"`
	Status        *ConversationStatus `json:"status,omitempty"`
	TurnCount     *int                `json:"turn_count,omitempty"`

	// Slots contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Slots map[string]any `json:"slots,omitempty"`

	// Messages contains the history entries appended by the turn.
	Messages []Message `json:"messages,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		diff.CurrentNodeID = &newState.CurrentNodeID
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}
	if oldState == nil || oldState.TurnCount != newState.TurnCount {
		diff.TurnCount = &newState.TurnCount
	}

	diff.Slots = diffSlots(oldState, newState)
	diff.Messages = diffHistory(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffSlots(old *State, new *State) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Slots {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Slots {
		oldVal, exists := old.Slots[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Slots {
		if _, exists := new.Slots[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes the history is append-only.
func diffHistory(old *State, new *State) []Message {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return new.History
	}
	if len(new.History) > len(old.History) {
		return new.History[len(old.History):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		d.TurnCount == nil &&
		len(d.Slots) == 0 &&
		len(d.Messages) == 0
}
