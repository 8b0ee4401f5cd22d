package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"battlescope/pkg/database"
)

// Config carries the External-API client's environment-sourced options (§6).
type Config struct {
	BaseURL         string
	TimeoutMS       int
	CacheTTLSeconds int
	UserAgent       string
	RateLimitN      int
	RateLimitWindow time.Duration
}

// ErrorLimits mirrors the upstream's rolling error-limit headers.
type ErrorLimits struct {
	Remain int
	Reset  time.Time
	Window int
}

// Client resolves identifiers against the upstream identity API with two-tier
// caching, a distributed floating-window rate limiter and bearer-token
// rotation.
type Client struct {
	httpClient *http.Client
	cfg        Config

	l1 *l1Cache
	l2 *l2Cache

	limiter     *RateLimiter
	errorBudget *ErrorBudget
	tokens      *TokenPool

	limitsMu sync.Mutex
	limits   ErrorLimits
}

func NewClient(cfg Config, redis *database.Redis, limiter *RateLimiter, errorBudget *ErrorBudget, tokens *TokenPool) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		cfg:         cfg,
		l1:          newL1Cache(),
		l2:          newL2Cache(redis),
		limiter:     limiter,
		errorBudget: errorBudget,
		tokens:      tokens,
	}
}

var ErrNotFound = fmt.Errorf("identity: identifier not found upstream")

// Resolve looks up a single identifier, trying L1 then L2 then the upstream
// API, populating both cache tiers on a cold hit.
func (c *Client) Resolve(ctx context.Context, class ResourceClass, id int64) (Record, error) {
	cacheKey := fmt.Sprintf("%s:%d", class, id)
	if record, ok := c.l1.get(cacheKey); ok {
		return record, nil
	}

	if record, ok, err := c.l2.get(ctx, class, id); err != nil {
		slog.Warn("identity: l2 cache read failed", "error", err, "class", class, "id", id)
	} else if ok {
		c.l1.set(cacheKey, record, class.ttl())
		return record, nil
	}

	record, err := c.fetch(ctx, class, id)
	if err != nil {
		return Record{}, err
	}

	c.l1.set(cacheKey, record, class.ttl())
	if err := c.l2.set(ctx, record); err != nil {
		slog.Warn("identity: l2 cache write failed", "error", err, "class", class, "id", id)
	}
	return record, nil
}

// ResolveBatch resolves many identifiers of the same class, tolerating
// partial failure: unresolved IDs are simply absent from the result map.
func (c *Client) ResolveBatch(ctx context.Context, class ResourceClass, ids []int64) map[int64]Record {
	out := make(map[int64]Record, len(ids))
	for _, id := range ids {
		record, err := c.Resolve(ctx, class, id)
		if err != nil {
			if err != ErrNotFound {
				slog.Warn("identity: resolve failed", "error", err, "class", class, "id", id)
			}
			continue
		}
		out[id] = record
	}
	return out
}

func rateLimitGroup(class ResourceClass) RateLimitGroup {
	if class.isUniverseStatic() {
		return RateLimitGroup("universe")
	}
	return RateLimitGroup("affiliation")
}

// provisionalRequestCost is reserved against the ledger before a request's
// response status is known; fetch settles it to the real ResponseCost once
// the response arrives.
const provisionalRequestCost = 1

func (c *Client) fetch(ctx context.Context, class ResourceClass, id int64) (Record, error) {
	group := rateLimitGroup(class)
	if err := c.limiter.Wait(ctx, group, provisionalRequestCost); err != nil {
		return Record{}, fmt.Errorf("identity: rate limiter: %w", err)
	}

	if blocked, err := c.errorBudget.RecordAndCheck(ctx, false); err != nil {
		slog.Warn("identity: error budget check failed", "error", err)
	} else if blocked {
		return Record{}, fmt.Errorf("identity: error budget exhausted, refusing new requests")
	}

	req, err := c.buildRequest(ctx, class, id)
	if err != nil {
		return Record{}, err
	}

	resp, err := c.doWithTokenRotation(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	c.updateErrorLimits(resp.Header)
	c.settleCost(ctx, group, resp.StatusCode)
	c.reconcileQuota(ctx, group, resp.Header)

	isError := resp.StatusCode >= 400
	if _, err := c.errorBudget.RecordAndCheck(ctx, isError); err != nil {
		slog.Warn("identity: error budget record failed", "error", err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return Record{}, ErrNotFound
	case 420:
		time.Sleep(60 * time.Second)
		return Record{}, fmt.Errorf("identity: upstream returned 420, backed off")
	case http.StatusTooManyRequests:
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, err := strconv.Atoi(retryAfter); err == nil {
				time.Sleep(time.Duration(secs) * time.Second)
			}
		}
		return Record{}, fmt.Errorf("identity: upstream rate limited (429)")
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return Record{}, fmt.Errorf("identity: upstream error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Name   string `json:"name"`
		Ticker string `json:"ticker"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Record{}, fmt.Errorf("identity: decode response: %w", err)
	}

	return Record{ID: id, Name: payload.Name, Category: class, Ticker: payload.Ticker}, nil
}

func (c *Client) buildRequest(ctx context.Context, class ResourceClass, id int64) (*http.Request, error) {
	url := fmt.Sprintf("%s/%ss/%d/", c.cfg.BaseURL, class, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doWithTokenRotation attaches the next pooled bearer token to every request
// whenever a token pool is configured, whatever the resource class, and
// retries once on 401/403 after marking the failing token and forcing a pool
// refresh.
func (c *Client) doWithTokenRotation(req *http.Request) (*http.Response, error) {
	if c.tokens == nil {
		return c.httpClient.Do(req)
	}

	token, err := c.tokens.Next(req.Context())
	if err != nil {
		return nil, fmt.Errorf("identity: token pool: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		c.tokens.MarkFailed(token)

		token, err = c.tokens.Next(req.Context())
		if err != nil {
			return nil, fmt.Errorf("identity: token pool after failure: %w", err)
		}
		retry := req.Clone(req.Context())
		retry.Header.Set("Authorization", "Bearer "+token)
		return c.httpClient.Do(retry)
	}

	return resp, nil
}

func (c *Client) updateErrorLimits(headers http.Header) {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()

	if remain := headers.Get("X-Error-Limit-Remain"); remain != "" {
		if v, err := strconv.Atoi(remain); err == nil {
			c.limits.Remain = v
		}
	}
	if reset := headers.Get("X-Error-Limit-Reset"); reset != "" {
		if v, err := strconv.ParseInt(reset, 10, 64); err == nil {
			c.limits.Reset = time.Unix(v, 0)
		}
	}
	if window := headers.Get("X-Error-Limit-Window"); window != "" {
		if v, err := strconv.Atoi(window); err == nil {
			c.limits.Window = v
		}
	}
}

// settleCost corrects the ledger from the provisional admission spend to the
// real per-status cost the response earned, per §4.3's cost table.
func (c *Client) settleCost(ctx context.Context, group RateLimitGroup, status int) {
	delta := ResponseCost(status) - provisionalRequestCost
	if delta == 0 {
		return
	}
	if err := c.limiter.Reconcile(ctx, group, delta); err != nil {
		slog.Warn("identity: rate limiter cost settlement failed", "error", err, "status", status)
	}
}

// reconcileQuota compares the upstream's authoritative remaining-budget
// header against what the client's own ledger implies (capacity minus held)
// and appends a phantom spend for the gap when the server reports a lower
// remaining budget, because the server is authoritative over the count
// (§4.3).
func (c *Client) reconcileQuota(ctx context.Context, group RateLimitGroup, headers http.Header) {
	remainHeader := headers.Get("X-Ratelimit-Remaining")
	if remainHeader == "" {
		return
	}
	serverRemaining, err := strconv.Atoi(remainHeader)
	if err != nil {
		return
	}

	clientRemaining, err := c.limiter.Remaining(ctx, group)
	if err != nil {
		slog.Warn("identity: rate limiter remaining check failed", "error", err)
		return
	}

	if serverRemaining < clientRemaining {
		deficit := clientRemaining - serverRemaining
		if err := c.limiter.Reconcile(ctx, group, deficit); err != nil {
			slog.Warn("identity: rate limiter reconcile failed", "error", err)
		}
	}
}
