// Package observability wires OpenTelemetry spans and Prometheus-exported
// counters around provider requests, tool executions and agent calls.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// GetTracer returns a tracer from the globally installed provider. Hosting
// processes install their own provider; without one this is a no-op tracer.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
