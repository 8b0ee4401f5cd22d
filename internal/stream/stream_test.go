package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestPublishFansOutToRegisteredSubscribers(t *testing.T) {
	client := newMiniredisClient(t)
	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go func() {
		close(ready)
		subscriber.Run(ctx)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)

	events, unregister := subscriber.Register()
	defer unregister()

	event := killmail.Event{KillmailID: dto.U64(42), SystemID: 30000142}
	require.NoError(t, publisher.Publish(context.Background(), event))

	select {
	case got := <-events:
		require.Equal(t, event.KillmailID, got.KillmailID)
		require.Equal(t, event.SystemID, got.SystemID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	client := newMiniredisClient(t)
	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go func() {
		close(ready)
		subscriber.Run(ctx)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)

	events, unregister := subscriber.Register()
	unregister()

	require.NoError(t, publisher.Publish(context.Background(), killmail.Event{KillmailID: dto.U64(1)}))

	select {
	case _, ok := <-events:
		require.False(t, ok, "channel should be closed after unregister")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("channel neither closed nor received after unregister")
	}
}

func TestBroadcastDropsForSlowConsumer(t *testing.T) {
	subscriber := NewSubscriber(nil)
	events, unregister := subscriber.Register()
	defer unregister()

	for i := 0; i < 64; i++ {
		subscriber.broadcast(killmail.Event{KillmailID: dto.U64(uint64(i))})
	}

	require.LessOrEqual(t, len(events), cap(events))
}
