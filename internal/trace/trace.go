// Package trace defines the minimal tracing capability consumed by the
// schema factory. The actual tracing sink is an external collaborator; the
// default implementation is a no-op.
package trace

import "context"

// Tracer starts named spans around factory and resolver operations.
type Tracer interface {
	// StartSpan begins a span and returns the derived context plus a
	// function that ends the span.
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

// Noop returns a Tracer that records nothing.
func Noop() Tracer { return noopTracer{} }
