// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracekit starts one OpenTelemetry span per connection
// lifecycle: Connecting through Connected to Closing/Draining/Closed,
// one span per state-machine run.
package tracekit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = trace.NewNoopTracerProvider().Tracer("quicd/conn")

// SetTracerProvider points future connection spans at a real exporter.
// Unset, tracekit uses the OpenTelemetry no-op provider.
func SetTracerProvider(tp trace.TracerProvider) {
	tracer = tp.Tracer("quicd/conn")
}

// ConnectionSpan covers one QUIC connection's life from Connecting to
// Closed.
type ConnectionSpan struct {
	span trace.Span
}

// StartConnection opens a span named "quic.connection" tagged with the
// connection's role and locally-issued connection ID.
func StartConnection(ctx context.Context, isServer bool, odcid string) (context.Context, *ConnectionSpan) {
	role := "client"
	if isServer {
		role = "server"
	}
	ctx, span := tracer.Start(ctx, "quic.connection", trace.WithAttributes(
		attribute.String("quic.role", role),
		attribute.String("quic.odcid", odcid),
	))
	return ctx, &ConnectionSpan{span: span}
}

// Event records a state-machine transition (spec.md §4.8's Connecting /
// Connected / Closing / Draining / Closed) as a span event.
func (c *ConnectionSpan) Event(state string) {
	if c == nil {
		return
	}
	c.span.AddEvent(state)
}

// End closes the span, attaching the connection's final PTO count and
// close error code (0 for a clean NO_ERROR close).
func (c *ConnectionSpan) End(ptoCount int, errCode uint64) {
	if c == nil {
		return
	}
	c.span.SetAttributes(
		attribute.Int("quic.pto_count", ptoCount),
		attribute.Int64("quic.error_code", int64(errCode)),
	)
	c.span.End()
}
