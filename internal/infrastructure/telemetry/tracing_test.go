package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)
	id := uuid.New()

	_, span := StartServiceSpan(context.Background(), "disbursement", "confirm_order",
		SpanAttrDisbursementOrderID, id,
		SpanAttrRequestCount, 3,
	)
	SetAttributes(span, SpanAttrPhase, "confirmed", 42, "skipped")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "disbursement.confirm_order", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, id.String(), attrs[SpanAttrDisbursementOrderID])
	assert.Equal(t, "3", attrs[SpanAttrRequestCount])
	assert.Equal(t, "confirmed", attrs[SpanAttrPhase])
	assert.Len(t, attrs, 3)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "reconciler.recalculate")
	RecordError(span, errors.New("connection refused"))
	RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection refused", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "disbursement.confirm_order")
	AddEvent(span, "compensation_failed", SpanAttrPaymentRequestID, "pr-1")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "compensation_failed", events[0].Name)
	assert.Equal(t, "pr-1", attrMap(events[0].Attributes)[SpanAttrPaymentRequestID])
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "k", "v")
		RecordError(nil, errors.New("x"))
		AddEvent(nil, "e")
	})
}
