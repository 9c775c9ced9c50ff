/*
Package domain contains the core models of the agent-first orchestration engine.

It defines the entities the orchestrator threads through a conversation:
graph nodes and edges, handler descriptors and outputs, the per-conversation
state and the wire shapes of the Turn API. The package has no I/O and no
dependency on adapters, following Hexagonal Architecture principles.

# Key Entities

  - Node: a point in the dialogue graph (Start, Task or Terminal).
  - Edge: a directed, optionally conditional, link between two nodes.
  - HandlerDescriptor: the name and description a handler is registered with.
  - State: the snapshot of one conversation (current node, slots, history).
  - Request / Response: the stateless Turn API boundary.
*/
package domain
