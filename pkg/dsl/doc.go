/*
Package dsl builds dialogue graphs in Go instead of YAML or JSON.

The builder keeps nodes and edges in declaration order, which is also the
order in which edges are evaluated.

	b := dsl.New()

	b.Add("start").
		Start("Hello! How can I help?").
		Go("triage")

	b.Add("triage").
		Task("Find out what the user needs").
		OnIntent("refund", "refund").
		When("resolved == 'yes'", "bye")

	b.Add("refund").Handler("RAGWorker").Go("triage")
	b.Add("bye").Terminal().Handler("MessageWorker")

	g, err := b.Build(registry)
*/
package dsl
