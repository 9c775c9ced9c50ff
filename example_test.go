package agentfirst_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/dsl"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// ExampleNew_inMemoryGraph builds the graph with the dsl package and lets the classifier
// pick the handler of an unbound node.
func ExampleNew_inMemoryGraph() {
	shout := domain.HandlerDescriptor{Name: "Shout", Description: "Repeats the user in capitals"}
	ctor := func() (ports.Handler, error) {
		return ports.HandlerFunc(func(ctx context.Context, in ports.Input) (domain.HandlerOutput, error) {
			return domain.HandlerOutput{Answer: strings.ToUpper(in.State.UserMessage.Text)}, nil
		}), nil
	}

	b := dsl.New()
	b.Add("start").Start("Say something.").Go("talk")
	b.Add("talk").Task("Reply to the user")
	g, err := b.Build(nil)
	if err != nil {
		log.Fatal(err)
	}

	// The scripted oracle always picks Shout.
	oracle := memory.NewOracle()
	oracle.Responder = func(context.Context, string) (string, error) { return "Shout", nil }

	eng, err := agentfirst.New("", agentfirst.WithGraph(g), agentfirst.WithOracle(oracle), agentfirst.WithHandler(shout, ctor))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for _, text := range []string{"", "hello there"} {
		res, err := eng.Converse(ctx, "demo", text)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Answer)
	}
	// Output:
	// Say something.
	// HELLO THERE
}
