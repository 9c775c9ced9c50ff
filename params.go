package agentfirst

import (
	"context"
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"

	"github.com/MikaYeghi/agent-first/internal/runtime"
	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// SysKey is the parameter key holding the orchestrator position in the
// stateless Turn API. Handlers cannot write under it.
const SysKey = runtime.ReservedNamespace

// SysParams is the decoded form of parameters["sys"].
type SysParams struct {
	Node   string                    `mapstructure:"node"`
	Turn   int                       `mapstructure:"turn"`
	Status domain.ConversationStatus `mapstructure:"status"`
}

// EncodeParameters flattens state into the parameters mapping returned to
// stateless callers: every slot plus the reserved sys object.
func EncodeParameters(state *domain.State) map[string]any {
	params := make(map[string]any, len(state.Slots)+1)
	maps.Copy(params, state.Slots)
	params[SysKey] = map[string]any{
		"node":   state.CurrentNodeID,
		"turn":   state.TurnCount,
		"status": string(state.Status),
	}
	return params
}

// DecodeParameters rebuilds a state from stateless parameters. ok is false
// when params carry no sys object, meaning the conversation has not started.
func DecodeParameters(params map[string]any, history []domain.Message) (state *domain.State, ok bool, err error) {
	raw, found := params[SysKey]
	if !found || raw == nil {
		return nil, false, nil
	}

	var sys SysParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &sys,
	})
	if err != nil {
		return nil, false, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, false, fmt.Errorf("decode %s parameters: %w", SysKey, err)
	}
	if sys.Node == "" {
		return nil, false, fmt.Errorf("decode %s parameters: missing node", SysKey)
	}
	if sys.Status == "" {
		sys.Status = domain.StatusActive
	}

	state = domain.NewState("", sys.Node)
	state.TurnCount = sys.Turn
	state.Status = sys.Status
	state.History = append([]domain.Message(nil), history...)
	for k, v := range params {
		if k != SysKey {
			state.Slots[k] = v
		}
	}
	return state, true, nil
}

// GetResponse is the stateless Turn API: the whole conversation position
// travels in req.Parameters. A failed turn returns the request parameters
// unchanged together with the error, so the caller can retry the same turn.
func (e *Engine) GetResponse(ctx context.Context, req domain.Request) (domain.Response, error) {
	failed := domain.Response{Parameters: req.Parameters}

	state, ok, err := DecodeParameters(req.Parameters, req.ChatHistory)
	if err != nil {
		return failed, err
	}
	if !ok {
		state = e.runtime.Start(ctx, "")
		state.History = append(state.History, req.ChatHistory...)
		for k, v := range req.Parameters {
			if k != SysKey {
				state.Slots[k] = v
			}
		}
	}

	next, answer, err := e.runtime.Turn(ctx, state, domain.UserMessage{Text: req.Text, History: req.ChatHistory})
	if err != nil {
		return failed, err
	}
	return domain.Response{Answer: answer, Parameters: EncodeParameters(next)}, nil
}
