package enrichment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "enrichment:queue"

// Queue is a Redis list used as the enrichment handoff: C4 pushes killmail
// IDs, C5's workers block-pop them. It satisfies ingestion.EnrichmentQueue.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, killmailID uint64) error {
	if err := q.client.LPush(ctx, queueKey, killmailID).Err(); err != nil {
		return fmt.Errorf("enrichment: enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next killmail ID, returning
// (0, false, nil) on a timeout so the caller's loop can check for
// cancellation between attempts.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (uint64, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("enrichment: dequeue: %w", err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("enrichment: unexpected BRPOP result %v", result)
	}
	id, err := strconv.ParseUint(result[1], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("enrichment: parse queued id: %w", err)
	}
	return id, true, nil
}
