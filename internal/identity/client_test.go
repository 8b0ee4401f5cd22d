package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battlescope/pkg/database"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func wrapRedis(client *redis.Client) *database.Redis {
	return &database.Redis{Client: client}
}

func TestClientResolvePopulatesL1Cache(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "Test Pilot"})
	}))
	defer upstream.Close()

	redisClient := newTestRedisClient(t)
	limiter := NewRateLimiter(redisClient, 100, time.Minute)
	budget := NewErrorBudget(redisClient)

	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), limiter, budget, nil)

	record, err := client.Resolve(context.Background(), ClassCharacter, 12345)
	require.NoError(t, err)
	require.Equal(t, "Test Pilot", record.Name)
	require.Equal(t, int64(12345), record.ID)

	cached, ok := client.l1.get("character:12345")
	require.True(t, ok)
	require.Equal(t, "Test Pilot", cached.Name)
}

func TestClientResolveNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	redisClient := newTestRedisClient(t)
	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), NewRateLimiter(redisClient, 100, time.Minute), NewErrorBudget(redisClient), nil)

	_, err := client.Resolve(context.Background(), ClassSystem, 99999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientResolveBatchTolerantOfPartialFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/characters/2/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "Pilot"})
	}))
	defer upstream.Close()

	redisClient := newTestRedisClient(t)
	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), NewRateLimiter(redisClient, 100, time.Minute), NewErrorBudget(redisClient), nil)

	results := client.ResolveBatch(context.Background(), ClassCharacter, []int64{1, 2, 3})
	require.Len(t, results, 2)
	require.Contains(t, results, int64(1))
	require.Contains(t, results, int64(3))
	require.NotContains(t, results, int64(2))
}

func TestDoWithTokenRotationRetriesOnUnauthorized(t *testing.T) {
	var attempts int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Authorization") == "Bearer good" {
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "Pilot"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	source := &fakeTokenSource{tokens: []string{"bad"}}
	pool := NewTokenPool(source)

	redisClient := newTestRedisClient(t)
	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), NewRateLimiter(redisClient, 100, time.Minute), NewErrorBudget(redisClient), pool)

	source.tokens = []string{"bad"}
	_, err := client.Resolve(context.Background(), ClassCorporation, 1)
	require.Error(t, err)

	source.tokens = []string{"good"}
	pool.MarkFailed("bad")
	record, err := client.Resolve(context.Background(), ClassCorporation, 2)
	require.NoError(t, err)
	require.Equal(t, "Pilot", record.Name)
}

func TestFetchSettlesLedgerToResponseCost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	redisClient := newTestRedisClient(t)
	limiter := NewRateLimiter(redisClient, 100, time.Minute)
	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), limiter, NewErrorBudget(redisClient), nil)

	_, err := client.Resolve(context.Background(), ClassCharacter, 1)
	require.ErrorIs(t, err, ErrNotFound)

	held, err := limiter.Held(context.Background(), rateLimitGroup(ClassCharacter))
	require.NoError(t, err)
	require.Equal(t, ResponseCost(http.StatusNotFound), held,
		"a 404 response should settle the ledger to its real per-status cost, not the provisional reservation")
}

func TestReconcileQuotaAdjustsForServerReportedDeficit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "0")
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "Pilot"})
	}))
	defer upstream.Close()

	redisClient := newTestRedisClient(t)
	limiter := NewRateLimiter(redisClient, 100, time.Minute)
	client := NewClient(Config{
		BaseURL:   upstream.URL,
		TimeoutMS: 2000,
		UserAgent: "battlescope-test/1.0",
	}, wrapRedis(redisClient), limiter, NewErrorBudget(redisClient), nil)

	_, err := client.Resolve(context.Background(), ClassCharacter, 1)
	require.NoError(t, err)

	group := rateLimitGroup(ClassCharacter)
	remaining, err := limiter.Remaining(context.Background(), group)
	require.NoError(t, err)
	require.Equal(t, 0, remaining, "the client's ledger should now agree with the server's reported zero remaining")
}

type fakeTokenSource struct {
	tokens []string
}

func (f *fakeTokenSource) FetchTokens(ctx context.Context) ([]string, error) {
	return f.tokens, nil
}
