package eventbus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/events"
)

func TestGoChannelEventBus_PublishSubscribe(t *testing.T) {
	bus := NewGoChannelEventBus(slog.Default())
	defer bus.Close()

	received := make(chan any, 1)

	err := bus.Handle(events.WorkflowCreatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	published := events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, "wf-1"),
		Name:      "Support Line",
		Category:  "CUSTOMER_SERVICE",
		Language:  "en",
	}

	require.NoError(t, bus.Publish(t.Context(), "wf-1", published))

	select {
	case event := <-received:
		created, ok := event.(*events.WorkflowCreated)
		require.True(t, ok)
		assert.Equal(t, "wf-1", created.WorkflowID)
		assert.Equal(t, "Support Line", created.Name)
		assert.Equal(t, events.WorkflowCreatedEvent, created.GetType())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestGoChannelEventBus_UnhandledTypesAreDropped(t *testing.T) {
	bus := NewGoChannelEventBus(slog.Default())
	defer bus.Close()

	received := make(chan any, 1)

	err := bus.Handle(events.ExecutionFailedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for this type; it is acked and dropped.
	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.WorkflowActivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowActivatedEvent, "wf-1"),
	}))

	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, "wf-1"),
		ExecutionID: "exec-1",
		Error:       "step limit exceeded",
	}))

	select {
	case event := <-received:
		failed, ok := event.(*events.ExecutionFailed)
		require.True(t, ok)
		assert.Equal(t, "exec-1", failed.ExecutionID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestGenerateID_Unique(t *testing.T) {
	bus := NewGoChannelEventBus(slog.Default())
	defer bus.Close()

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
