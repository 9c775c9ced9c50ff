package ports_test

import (
	"context"
	"testing"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_String(t *testing.T) {
	assert.Equal(t, "", ports.Prompt(nil).String())
	assert.Equal(t, "héllo world", ports.Prompt{"hél", "lo ", "world"}.String())
}

func TestHandlerFunc(t *testing.T) {
	h := ports.HandlerFunc(func(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
		return domain.HandlerOutput{Answer: "echo:" + in.State.UserMessage.Text}, nil
	})

	state := domain.NewState("s", "start")
	state.UserMessage.Text = "hi"

	out, err := h.Execute(context.Background(), ports.Input{State: state})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out.Answer)
}

func TestOracleFunc(t *testing.T) {
	var got ports.Prompt
	o := ports.OracleFunc(func(ctx context.Context, p ports.Prompt) (string, error) {
		got = p
		return "ok", nil
	})

	out, err := o.Complete(context.Background(), ports.Prompt{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, ports.Prompt{"a", "b"}, got)
}
