package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Receipt", uuid.New())}
}

func recordingHandler(seen *[]string, types ...string) *HandlerFunc {
	return &HandlerFunc{
		Types: types,
		Fn: func(ctx context.Context, evt shared.DomainEvent) error {
			*seen = append(*seen, evt.EventType())
			return nil
		},
	}
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	var confirmed, all []string
	bus.Subscribe(recordingHandler(&confirmed, "ReceiptConfirmed"))
	bus.Subscribe(recordingHandler(&all))

	err := bus.Publish(context.Background(),
		newTestEvent("ReceiptCreated"),
		newTestEvent("ReceiptConfirmed"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"ReceiptConfirmed"}, confirmed)
	assert.Equal(t, []string{"ReceiptCreated", "ReceiptConfirmed"}, all)
}

func TestInMemoryEventBus_SubscribeOverridesTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	var seen []string
	bus.Subscribe(recordingHandler(&seen, "ReceiptCreated"), "ReceiptDeleted")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ReceiptCreated"), newTestEvent("ReceiptDeleted")))
	assert.Equal(t, []string{"ReceiptDeleted"}, seen)
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	var seen []string
	bus.Subscribe(&HandlerFunc{
		Types: []string{"ReceiptCreated"},
		Fn: func(ctx context.Context, evt shared.DomainEvent) error {
			return errors.New("projection failed")
		},
	})
	bus.Subscribe(&HandlerFunc{
		Types: []string{"ReceiptCreated"},
		Fn: func(ctx context.Context, evt shared.DomainEvent) error {
			panic("boom")
		},
	})
	bus.Subscribe(recordingHandler(&seen, "ReceiptCreated"))

	err := bus.Publish(context.Background(), newTestEvent("ReceiptCreated"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ReceiptCreated"}, seen)
	assert.Equal(t, 2, recorded.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	var seen []string
	h := recordingHandler(&seen, "ReceiptCreated", "ReceiptDeleted")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ReceiptCreated")))
	assert.Empty(t, seen)
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	var seen []string
	a := recordingHandler(&seen)
	b := recordingHandler(&seen)

	r.Register(a, "A", "B")
	r.Register(b)

	assert.Len(t, r.Handlers("A"), 2)
	assert.Len(t, r.Handlers("C"), 1)

	r.Unregister(a)
	assert.Len(t, r.Handlers("A"), 1)
	assert.Same(t, b, r.Handlers("A")[0])
}
