package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Reply is one scripted oracle answer.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// Oracle is a scripted ports.Oracle. Queued replies are returned in order;
// once the queue is empty the Responder is used, or an empty answer.
type Oracle struct {
	mu      sync.Mutex
	queue   []Reply
	prompts []ports.Prompt

	// Responder answers when the queue is empty.
	Responder func(ctx context.Context, prompt string) (string, error)
}

// NewOracle creates an oracle that answers with texts, in order.
func NewOracle(texts ...string) *Oracle {
	o := &Oracle{}
	for _, t := range texts {
		o.queue = append(o.queue, Reply{Text: t})
	}
	return o
}

// Enqueue appends replies to the script.
func (o *Oracle) Enqueue(replies ...Reply) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, replies...)
}

// Complete implements ports.Oracle.
func (o *Oracle) Complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	o.mu.Lock()
	o.prompts = append(o.prompts, append(ports.Prompt(nil), prompt...))
	var (
		next   Reply
		queued bool
	)
	if len(o.queue) > 0 {
		next, o.queue, queued = o.queue[0], o.queue[1:], true
	}
	responder := o.Responder
	o.mu.Unlock()

	if !queued {
		if responder != nil {
			return responder(ctx, prompt.String())
		}
		return "", nil
	}

	if next.Delay > 0 {
		timer := time.NewTimer(next.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return next.Text, next.Err
}

// Calls returns the number of Complete calls so far.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

// Prompts returns every prompt received, in order.
func (o *Oracle) Prompts() []ports.Prompt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ports.Prompt(nil), o.prompts...)
}
