package middleware_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/persistence/middleware"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.StateStore, cfg middleware.EncryptionConfig) ports.StateStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	ctx := t.Context()
	state := domain.NewState("s1", "start")
	state.Slots["secret"] = "my-secret-sauce"
	state.History = []domain.Message{{Role: domain.RoleUser, Content: "my card is 4242"}}

	require.NoError(t, store.Save(ctx, "s1", state))

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Slots, "secret")
	assert.Contains(t, raw.Slots, middleware.EnvelopeSlot)
	assert.Empty(t, raw.History)
	assert.Equal(t, domain.StatusActive, raw.Status)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Slots["secret"])
	assert.Equal(t, "start", loaded.CurrentNodeID)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "my card is 4242", loaded.History[0].Content)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	newStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})

	ctx := t.Context()
	state := domain.NewState("r1", "start")
	state.Slots["data"] = "encrypted-with-old-key"
	require.NoError(t, oldStore.Save(ctx, "r1", state))

	loaded, err := newStore.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Slots["data"])

	loaded.Slots["data"] = "encrypted-with-new-key"
	require.NoError(t, newStore.Save(ctx, "r1", loaded))

	_, err = oldStore.Load(ctx, "r1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RefusesPlainState(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(t.Context(), "p1", domain.NewState("p1", "start")))

	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := store.Load(t.Context(), "p1")
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"password"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	store := middleware.Chain(underlying, pii, enc)

	state := domain.NewState("c1", "start")
	state.Slots["password"] = "hunter2"
	require.NoError(t, store.Save(t.Context(), "c1", state))

	loaded, err := store.Load(t.Context(), "c1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Slots["password"])
}
