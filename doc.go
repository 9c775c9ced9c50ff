/*
Package agentfirst is a task-graph orchestration engine for conversational agents.

A conversation walks a directed graph of dialogue nodes. At each node the
orchestrator either runs the node's statically bound handler or asks a
classification oracle (usually a language model) to pick one of the
registered handlers. Handlers come in two flavours: workers produce an
answer directly, agents delegate to other handlers. The handler output is
folded back into the conversation state and the graph's edges decide which
node the next turn visits.

# Usage

	oracle := openai.New()
	eng, err := agentfirst.New("support.yaml",
		agentfirst.WithOracle(oracle),
		agentfirst.WithRetriever(docs),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Converse(ctx, "session-123", "I want a refund")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Answer)

# Turn APIs

Converse keeps the conversation in the configured StateStore and serializes
concurrent turns of the same session. GetResponse is stateless: the caller
carries the whole position in the request parameters, under the reserved
"sys" key, and sends them back on the next turn.

A failed turn never modifies the conversation. Converse leaves the stored
state untouched and GetResponse returns the request parameters unchanged,
so the caller may retry the same turn.

# Errors

Load-time problems (DuplicateName, UnknownHandler, MalformedGraph) are
returned by New. Per-turn problems (DelegationLoop, ConversationEnded,
ConstructionFailure) are returned by the turn and match the sentinels in
package domain with errors.Is.
*/
package agentfirst
