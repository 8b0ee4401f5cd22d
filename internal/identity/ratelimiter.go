package identity

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitGroup names an upstream quota partition, e.g. "universe" or
// "affiliation"; requests within a group share a token ledger.
type RateLimitGroup string

// spendScript atomically prunes entries older than the window, sums the
// remaining cost (encoded in each member string as "nanos:cost:nonce" so no
// second key is needed), and - if there is room - records the new spend, all
// in one round-trip so concurrent replicas never race on the read-then-write.
// This is the server-side script the concurrency model requires for
// rate-limit ledger writes: a plain GET-then-SET from Go would let two
// replicas both observe room for one more request and overspend the budget.
//
// KEYS[1] = ledger sorted-set key
// ARGV[1] = now (unix nanos, score)
// ARGV[2] = window start (now - window, in unix nanos)
// ARGV[3] = capacity N
// ARGV[4] = cost of this request
// ARGV[5] = nonce, to keep members unique when nanos collide
//
// Returns {admitted (0/1), held-token count}.
const spendScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local members = redis.call('ZRANGE', KEYS[1], 0, -1)
local held = 0
for i = 1, #members do
	local cost = tonumber(string.match(members[i], ':(%-?%d+):'))
	held = held + (cost or 0)
end
local capacity = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
if held + cost > capacity then
	return {0, held}
end
local member = ARGV[1] .. ':' .. ARGV[4] .. ':' .. ARGV[5]
redis.call('ZADD', KEYS[1], ARGV[1], member)
redis.call('PEXPIRE', KEYS[1], 120000)
return {1, held + cost}
`

// heldScript prunes expired entries and reports the ledger's current held
// total without spending anything, so a caller can compare it against an
// upstream's authoritative remaining-budget header.
const heldScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local members = redis.call('ZRANGE', KEYS[1], 0, -1)
local held = 0
for i = 1, #members do
	local cost = tonumber(string.match(members[i], ':(%-?%d+):'))
	held = held + (cost or 0)
end
return held
`

// adjustScript appends a ledger adjustment entry of an arbitrary (possibly
// negative) cost: positive to correct the ledger up to a higher real cost or
// a server-reported deficit, negative to refund an overspent reservation. It
// never blocks and always succeeds, since it is a correction, not a new
// admission decision.
const adjustScript = `
local member = ARGV[1] .. ':' .. ARGV[2] .. ':adj:' .. ARGV[3]
redis.call('ZADD', KEYS[1], ARGV[1], member)
redis.call('PEXPIRE', KEYS[1], 120000)
return 1
`

// RateLimiter enforces the floating-window token bucket described for C3:
// capacity N per window, costed per response status, atomic ledger writes.
type RateLimiter struct {
	client   *redis.Client
	spend    *redis.Script
	held     *redis.Script
	adjust   *redis.Script
	capacity int
	window   time.Duration

	// perIterationCap bounds how long a single Wait call will sleep before
	// re-checking; hardCeiling bounds the total time across all iterations.
	perIterationCap time.Duration
	hardCeiling     time.Duration
}

func NewRateLimiter(client *redis.Client, capacity int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:          client,
		spend:           redis.NewScript(spendScript),
		held:            redis.NewScript(heldScript),
		adjust:          redis.NewScript(adjustScript),
		capacity:        capacity,
		window:          window,
		perIterationCap: 5 * time.Second,
		hardCeiling:     30 * time.Second,
	}
}

// ResponseCost maps a response status to its ledger cost per §4.3.
func ResponseCost(status int) int {
	switch {
	case status == 429:
		return 0
	case status >= 500:
		return 0
	case status >= 400:
		return 5
	case status >= 300:
		return 1
	default:
		return 2
	}
}

// Wait blocks until `cost` tokens are available in the group's ledger, then
// atomically spends them. It returns an error only if the hard ceiling is
// exceeded or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context, group RateLimitGroup, cost int) error {
	deadline := time.Now().Add(r.hardCeiling)
	key := ledgerKey(group)

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("identity: rate limiter hard ceiling exceeded for group %s", group)
		}

		now := time.Now()
		res, err := r.spend.Run(ctx, r.client, []string{key},
			now.UnixNano(), now.Add(-r.window).UnixNano(), r.capacity, cost, rand.Int63(),
		).Result()
		if err != nil {
			return fmt.Errorf("identity: rate limiter script failed: %w", err)
		}

		pair, ok := res.([]interface{})
		if !ok || len(pair) != 2 {
			return fmt.Errorf("identity: unexpected rate limiter script result %v", res)
		}
		admitted, _ := pair[0].(int64)
		if admitted == 1 {
			return nil
		}

		sleep := r.perIterationCap
		jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep + jitter):
		}
	}
}

// Reconcile appends a ledger adjustment of delta tokens for group: positive
// to correct the ledger up (a server-reported deficit, or a real response
// cost higher than what was provisionally reserved), negative to refund an
// overspent reservation. Zero is a no-op.
func (r *RateLimiter) Reconcile(ctx context.Context, group RateLimitGroup, delta int) error {
	if delta == 0 {
		return nil
	}
	now := time.Now()
	return r.adjust.Run(ctx, r.client, []string{ledgerKey(group)}, now.UnixNano(), delta, rand.Int63()).Err()
}

// Held returns the sum of costs currently recorded in group's ledger window.
func (r *RateLimiter) Held(ctx context.Context, group RateLimitGroup) (int, error) {
	now := time.Now()
	res, err := r.held.Run(ctx, r.client, []string{ledgerKey(group)}, now.Add(-r.window).UnixNano()).Result()
	if err != nil {
		return 0, fmt.Errorf("identity: rate limiter held script failed: %w", err)
	}
	held, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("identity: unexpected held script result %v", res)
	}
	return int(held), nil
}

// Remaining returns the group's implied remaining budget: capacity minus
// what Held reports currently spent.
func (r *RateLimiter) Remaining(ctx context.Context, group RateLimitGroup) (int, error) {
	held, err := r.Held(ctx, group)
	if err != nil {
		return 0, err
	}
	return r.capacity - held, nil
}

func ledgerKey(group RateLimitGroup) string {
	return fmt.Sprintf("identity:ratelimit:%s", group)
}

// ErrorBudget tracks the rolling-60s 4xx/5xx counter described in §4.3,
// independent of the per-group quota above.
type ErrorBudget struct {
	client *redis.Client
	cap    int
	window time.Duration
}

func NewErrorBudget(client *redis.Client) *ErrorBudget {
	return &ErrorBudget{client: client, cap: 100, window: 60 * time.Second}
}

func (e *ErrorBudget) RecordAndCheck(ctx context.Context, isError bool) (blocked bool, err error) {
	key := "identity:errorbudget"
	now := time.Now()

	pipe := e.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", now.Add(-e.window).UnixNano()))
	if isError {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d:%d", now.UnixNano(), rand.Int63())})
	}
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, e.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("identity: error budget pipeline failed: %w", err)
	}

	count, err := card.Result()
	if err != nil {
		return false, err
	}
	return count >= int64(e.cap), nil
}
