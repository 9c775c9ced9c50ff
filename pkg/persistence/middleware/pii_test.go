package middleware_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	store := mw(underlying)

	ctx := t.Context()
	state := domain.NewState("pii-session", "start")
	state.Slots["username"] = "jdoe"
	state.Slots["user_password"] = "secret123"
	state.Slots["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}

	require.NoError(t, store.Save(ctx, "pii-session", state))

	// The engine's copy is untouched.
	assert.Equal(t, "secret123", state.Slots["user_password"])
	assert.Equal(t, "999-99-9999", state.Slots["details"].(map[string]any)["ssn_number"])

	stored, err := underlying.Load(ctx, "pii-session")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.Slots["username"])
	assert.Equal(t, middleware.Mask, stored.Slots["user_password"])
	details := stored.Slots["details"].(map[string]any)
	assert.Equal(t, "123 St", details["address"])
	assert.Equal(t, middleware.Mask, details["ssn_number"])
}

func TestPIIMiddleware_BadPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}
