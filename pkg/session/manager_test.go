package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/adapters/redis"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/session"
)

// slowStore adds latency so missing locks show up as lost updates.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Load(ctx context.Context, id string) (*domain.State, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func (s slowStore) Save(ctx context.Context, id string, state *domain.State) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, id, state)
}

func start(id string) func(context.Context) *domain.State {
	return func(context.Context) *domain.State {
		return domain.NewState(id, "start")
	}
}

func increment(ctx context.Context, st *domain.State) (*domain.State, error) {
	next := st.Clone()
	next.TurnCount++
	return next, nil
}

func TestManager_RunSerializesTurns(t *testing.T) {
	manager := session.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Run(ctx, "race", start("race"), increment)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 10, state.TurnCount, "no update may be lost")
}

func TestManager_RunFailureKeepsStoredState(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, err := manager.Run(ctx, "s1", start("s1"), increment)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = manager.Run(ctx, "s1", start("s1"), func(ctx context.Context, st *domain.State) (*domain.State, error) {
		st.TurnCount = 99
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.TurnCount)
}

func TestManager_RunFailedFirstTurnSavesNothing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, err := manager.Run(ctx, "new", start("new"), func(ctx context.Context, st *domain.State) (*domain.State, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	_, err = manager.Load(ctx, "new")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_RunWithoutStart(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	_, err := manager.Run(context.Background(), "missing", nil, increment)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redis.NewFromClient(client)
	manager := session.NewManager(store,
		session.WithLocker(redis.NewLocker(client, store.Prefix())),
		session.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	_, err := manager.Run(ctx, "s1", start("s1"), func(ctx context.Context, st *domain.State) (*domain.State, error) {
		assert.True(t, mr.Exists(store.Prefix()+"lock:s1"), "lock is held during the step")
		return increment(ctx, st)
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(store.Prefix()+"lock:s1"), "lock is released after the step")

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestManager_QueuedTurnHonoursCancellation(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := manager.Run(ctx, "busy", start("busy"), func(ctx context.Context, st *domain.State) (*domain.State, error) {
			close(entered)
			<-release
			return increment(ctx, st)
		})
		done <- err
	}()
	<-entered

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	began := time.Now()
	_, err := manager.Run(waitCtx, "busy", start("busy"), increment)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(began), 2*time.Second)

	close(release)
	require.NoError(t, <-done)

	state, err := manager.Load(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, 1, state.TurnCount)
}
