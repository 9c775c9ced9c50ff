/*
Package observability turns the engine's lifecycle hooks into structured
logs and Prometheus metrics, and configures the OpenTelemetry tracer
provider used by the orchestrator and the classifier spans.
*/
package observability
