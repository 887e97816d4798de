package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

func TestBusPublishSync(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())

	var got atomic.Int32
	bus.SubscribeFunc(BankUpdated, func(_ context.Context, event Event) error {
		e, ok := event.(BankUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, uint64(42), e.Slot)
		got.Add(1)
		return nil
	})

	event := NewBankUpdated(42, &state.Bank{TokenIndex: 1})
	require.NoError(t, bus.PublishSync(context.Background(), event))
	assert.Equal(t, int32(1), got.Load())

	// Other event types do not reach the handler.
	require.NoError(t, bus.PublishSync(context.Background(), NewWatcherStopped("test")))
	assert.Equal(t, int32(1), got.Load())
}

func TestBusAsyncDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	done := make(chan EventType, 1)
	bus.SubscribeFunc(GroupRefreshed, func(_ context.Context, event Event) error {
		done <- event.Type()
		return nil
	})

	require.NoError(t, bus.Publish(NewGroupRefreshed(state.Group{}.PublicKey, 3, 2)))

	select {
	case typ := <-done:
		assert.Equal(t, GroupRefreshed, typ)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Error(t, bus.Publish(NewWatcherStopped("after shutdown")))
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())

	var calls atomic.Int32
	sub := bus.SubscribeFunc(MarketUpdated, func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	event := NewMarketUpdated(1, &state.Serum3Market{MarketIndex: 0})
	require.NoError(t, bus.PublishSync(context.Background(), event))

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), event))

	assert.Equal(t, int32(1), calls.Load())
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer bus.Shutdown(context.Background())

	block := make(chan struct{})
	bus.SubscribeFunc(WatcherStopped, func(context.Context, Event) error {
		<-block
		return nil
	})

	// First event occupies the delivery loop, second fills the queue.
	// Everything after that is dropped.
	require.NoError(t, bus.Publish(NewWatcherStopped("a")))
	var dropErr error
	for i := 0; i < 10; i++ {
		if dropErr = bus.Publish(NewWatcherStopped("b")); dropErr != nil {
			break
		}
	}
	assert.Error(t, dropErr)
	close(block)
}
