// Package stream implements the live half of C7's killmail feed: a Redis
// pub/sub fan-out from the ingestion replica that admitted an event to every
// apiserver replica holding an open SSE connection.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"battlescope/internal/killmail"
)

const channel = "battlescope:killmails:admitted"

// Publisher is C4's Notifier: every admitted event is marshaled and
// published once, regardless of how many apiserver replicas are listening.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func (p *Publisher) Publish(ctx context.Context, event killmail.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}
	return p.redis.Publish(ctx, channel, payload).Err()
}

// Subscriber is C7's SSE handler's feed: one Redis subscription shared
// across every local SSE connection, fanned out to per-connection channels.
type Subscriber struct {
	redis *redis.Client

	mu       sync.Mutex
	nextID   int
	handlers map[int]chan killmail.Event
}

func NewSubscriber(redisClient *redis.Client) *Subscriber {
	return &Subscriber{
		redis:    redisClient,
		handlers: make(map[int]chan killmail.Event),
	}
}

// Run subscribes to the admission channel and fans every message out to
// every currently-registered per-connection channel. Blocks until ctx is
// cancelled; reconnects on subscription failure with exponential backoff,
// the same shape as ruleset.Cache.Subscribe.
func (s *Subscriber) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if s.consumeUntilDropped(ctx) {
			return
		}
		slog.Warn("stream: subscription dropped, reconnecting", "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// consumeUntilDropped subscribes and fans out messages until ctx is
// cancelled (true) or the underlying subscription channel closes (false).
func (s *Subscriber) consumeUntilDropped(ctx context.Context) bool {
	sub := s.redis.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return true
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			var event killmail.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("stream: malformed admission message", "error", err)
				continue
			}
			s.broadcast(event)
		}
	}
}

func (s *Subscriber) broadcast(event killmail.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.handlers {
		select {
		case ch <- event:
		default:
			// Slow consumer: drop rather than block the fan-out for every
			// other open connection.
		}
	}
}

// Register opens a new per-connection feed; callers MUST call the returned
// cancel func once the connection closes.
func (s *Subscriber) Register() (<-chan killmail.Event, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan killmail.Event, 32)
	s.handlers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
		close(ch)
	}
}
