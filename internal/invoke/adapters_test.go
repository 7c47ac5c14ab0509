package invoke_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/statecraft/internal/invoke"
)

func TestFromPromiseDeliversDone(t *testing.T) {
	logic := invoke.FromPromise(func(ctx context.Context, input any) (any, error) {
		return input, nil
	})

	events := make(chan [2]any, 1)
	h := logic.Start("task1", "payload", func(eventType string, data any) {
		events <- [2]any{eventType, data}
	})
	defer h.Stop()

	select {
	case got := <-events:
		assert.Equal(t, "done.invoke.task1", got[0])
		assert.Equal(t, map[string]any{"output": "payload"}, got[1])
	case <-time.After(time.Second):
		t.Fatal("promise never delivered done event")
	}
}

func TestFromPromiseDeliversError(t *testing.T) {
	boom := errors.New("boom")
	logic := invoke.FromPromise(func(ctx context.Context, input any) (any, error) {
		return nil, boom
	})

	events := make(chan [2]any, 1)
	h := logic.Start("task1", nil, func(eventType string, data any) {
		events <- [2]any{eventType, data}
	})
	defer h.Stop()

	select {
	case got := <-events:
		assert.Equal(t, "error.invoke.task1", got[0])
	case <-time.After(time.Second):
		t.Fatal("promise never delivered error event")
	}
}

func TestFromPromiseStopSuppressesLateDelivery(t *testing.T) {
	release := make(chan struct{})
	logic := invoke.FromPromise(func(ctx context.Context, input any) (any, error) {
		<-release
		return "late", nil
	})

	delivered := false
	h := logic.Start("task1", nil, func(string, any) { delivered = true })
	h.Stop()
	close(release)
	time.Sleep(20 * time.Millisecond)

	assert.False(t, delivered, "stopped promise must not deliver")
}

func TestFromCallbackSendBackAndReceive(t *testing.T) {
	var received []string
	logic := invoke.FromCallback(func(args invoke.CallbackArgs) func() {
		args.Receive(func(eventType string, data any) {
			received = append(received, eventType)
		})
		args.SendBack("ready", nil)
		return nil
	})

	var out [2]any
	h := logic.Start("cb1", nil, func(eventType string, data any) { out = [2]any{eventType, data} })
	require.Equal(t, "ready", out[0])

	recv, ok := h.(invoke.Receiver)
	require.True(t, ok)
	recv.Send("PING", nil)
	assert.Equal(t, []string{"PING"}, received)

	h.Stop()
	recv.Send("PING", nil)
	assert.Equal(t, []string{"PING"}, received, "no delivery after stop")
}

func TestFromCallbackRunsCleanupOnStop(t *testing.T) {
	cleaned := false
	logic := invoke.FromCallback(func(args invoke.CallbackArgs) func() {
		return func() { cleaned = true }
	})

	h := logic.Start("cb1", nil, func(string, any) {})
	h.Stop()
	assert.True(t, cleaned)
}
