/*
Package observability provides tools for monitoring running behavior trees.

Metrics and Tracing translate the runtime's domain.LifecycleHooks into
Prometheus series and OpenTelemetry spans. Both return plain hooks, so they
compose with each other and with user hooks through LifecycleHooks.Merge.
Setup installs a global OTLP trace provider when an endpoint is configured.
*/
package observability
