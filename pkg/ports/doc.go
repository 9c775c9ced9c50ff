/*
Package ports defines the interfaces between the orchestration core and the outside world.

# Driven ports

  - Handler / Constructor: the executable units the orchestrator dispatches to.
  - Delegator: lets agent handlers forward a turn to another registered handler.
  - Oracle: the text-completion capability behind classification and generation.
  - IntentClassifier: optional intent/slot extraction used by some workers.
  - Retriever, Searcher, DataSource: capabilities consumed by the built-in workers.
  - StateStore: persistence of conversation state for stateful sessions.
  - DistributedLocker: cross-replica serialization of turns on the same session.
*/
package ports
