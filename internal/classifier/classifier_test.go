package classifier_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/MikaYeghi/agent-first/internal/classifier"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var alphaBeta = []domain.HandlerDescriptor{
	{Name: "Alpha", Description: "handles alpha things"},
	{Name: "Beta", Description: "handles beta things"},
}

func request(maxAttempts int) classifier.Request {
	return classifier.Request{
		Purpose:     "handler",
		Goal:        "answer the user",
		UserText:    "hello",
		Candidates:  alphaBeta,
		MaxAttempts: maxAttempts,
		Fallback:    "DefaultWorker",
	}
}

func TestChoose_FirstAttemptMatch(t *testing.T) {
	oracle := memory.NewOracle("I think Beta fits")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, "Beta", res.Chosen)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, oracle.Calls())
}

func TestChoose_FallbackAfterExhaustion(t *testing.T) {
	oracle := memory.NewOracle("no idea", "still nothing")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, "DefaultWorker", res.Chosen)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Fallback)
	assert.Equal(t, 2, oracle.Calls())
}

func TestChoose_RetriesWithSamePrompt(t *testing.T) {
	oracle := memory.NewOracle("hmm", "Alpha")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(3))
	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.Chosen)
	assert.Equal(t, 2, res.Attempts)

	prompts := oracle.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, prompts[0], prompts[1])
}

func TestChoose_FirstCandidateInEnumerationOrderWins(t *testing.T) {
	oracle := memory.NewOracle("Beta Beta Beta or maybe Alpha")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(1))
	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.Chosen)
}

func TestChoose_MatchIsCaseSensitive(t *testing.T) {
	oracle := memory.NewOracle("beta", "ALPHA")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, "DefaultWorker", res.Chosen)
}

func TestChoose_OracleErrorsAreFailedAttempts(t *testing.T) {
	oracle := &memory.Oracle{}
	oracle.Enqueue(memory.Reply{Err: errors.New("503")}, memory.Reply{Text: "Alpha"})
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.Chosen)
	assert.Equal(t, 2, res.Attempts)
}

func TestChoose_TimeoutConsumesAttempt(t *testing.T) {
	oracle := &memory.Oracle{}
	oracle.Enqueue(memory.Reply{Text: "Alpha", Delay: time.Second}, memory.Reply{Text: "Beta"})
	c := classifier.New(oracle, classifier.WithAttemptTimeout(20*time.Millisecond))

	res, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, "Beta", res.Chosen)
	assert.Equal(t, 2, res.Attempts)
}

func TestChoose_CancelledContextFails(t *testing.T) {
	oracle := &memory.Oracle{}
	oracle.Enqueue(memory.Reply{Text: "Alpha", Delay: time.Second})
	c := classifier.New(oracle)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Choose(ctx, request(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, oracle.Calls())
}

func TestChoose_NoFallbackSurfacesOracleUnavailable(t *testing.T) {
	c := classifier.New(memory.NewOracle("x"))
	req := request(1)
	req.Fallback = ""

	_, err := c.Choose(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestChoose_NoCandidatesReturnsFallbackWithoutCalling(t *testing.T) {
	oracle := memory.NewOracle("Alpha")
	c := classifier.New(oracle)
	req := request(2)
	req.Candidates = nil

	res, err := c.Choose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "DefaultWorker", res.Chosen)
	assert.Equal(t, 0, oracle.Calls())
}

func TestChoose_ZeroAttemptsCountsAsOne(t *testing.T) {
	oracle := memory.NewOracle("nothing")
	c := classifier.New(oracle)

	res, err := c.Choose(context.Background(), request(0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, oracle.Calls())
}

func TestChoose_ChunksOversizedPrompt(t *testing.T) {
	oracle := memory.NewOracle("Alpha")
	c := classifier.New(oracle, classifier.WithContextBudget(64))
	req := request(1)
	req.UserText = strings.Repeat("a long message ", 40)

	_, err := c.Choose(context.Background(), req)
	require.NoError(t, err)

	prompt := oracle.Prompts()[0]
	assert.Greater(t, len(prompt), 1)
	for _, chunk := range prompt {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 64)
	}
	assert.Contains(t, prompt.String(), req.UserText)
}

func TestChoose_EmitsClassificationHook(t *testing.T) {
	var got *domain.ClassificationEvent
	c := classifier.New(memory.NewOracle("Beta"), classifier.WithLifecycleHooks(domain.LifecycleHooks{
		OnClassification: func(ctx context.Context, e *domain.ClassificationEvent) { got = e },
	}))

	_, err := c.Choose(context.Background(), request(2))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "handler", got.Purpose)
	assert.Equal(t, "Beta", got.Chosen)
	assert.Equal(t, 1, got.Attempts)
}

func TestChoose_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "candidates")
		candidates := make([]domain.HandlerDescriptor, n)
		for i := range candidates {
			candidates[i] = domain.HandlerDescriptor{Name: fmt.Sprintf("Worker%02d", i), Description: "d"}
		}
		maxAttempts := rapid.IntRange(1, 5).Draw(t, "maxAttempts")
		// Index of the first matching attempt; -1 means none matches.
		hitAt := rapid.IntRange(-1, maxAttempts-1).Draw(t, "hitAt")
		target := rapid.IntRange(0, n-1).Draw(t, "target")

		oracle := &memory.Oracle{}
		for i := 0; i < maxAttempts; i++ {
			text := "nothing useful"
			if i == hitAt {
				text = "go with " + candidates[target].Name + " please"
			}
			oracle.Enqueue(memory.Reply{Text: text})
		}

		res, err := classifier.New(oracle).Choose(context.Background(), classifier.Request{
			Candidates:  candidates,
			MaxAttempts: maxAttempts,
			Fallback:    "Fallback",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if hitAt < 0 {
			if res.Chosen != "Fallback" || res.Attempts != maxAttempts {
				t.Fatalf("want fallback after %d attempts, got %+v", maxAttempts, res)
			}
			return
		}
		if res.Chosen != candidates[target].Name || res.Attempts != hitAt+1 || oracle.Calls() != hitAt+1 {
			t.Fatalf("want %s after %d attempts, got %+v (%d calls)", candidates[target].Name, hitAt+1, res, oracle.Calls())
		}
	})
}

func TestMatch(t *testing.T) {
	name, ok := classifier.Match("use Alpha", alphaBeta)
	assert.True(t, ok)
	assert.Equal(t, "Alpha", name)

	_, ok = classifier.Match("", alphaBeta)
	assert.False(t, ok)
}
