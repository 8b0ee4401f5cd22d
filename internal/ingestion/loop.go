package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/pkg/sde"
)

// Result is the ingestion loop's per-iteration outcome, returned explicitly
// rather than only logged so callers (and tests) can assert on exactly what
// happened to a given poll.
type Result string

const (
	ResultStored    Result = "stored"
	ResultDuplicate Result = "duplicate"
	ResultFiltered  Result = "filtered"
	ResultEmpty     Result = "empty"
)

// EnrichmentQueue is the handoff point to C5; enqueue failures are logged
// but never roll back the C1 insert that already happened.
type EnrichmentQueue interface {
	Enqueue(ctx context.Context, killmailID uint64) error
}

// Notifier fans a freshly admitted event out to C7's SSE stream. It is
// optional: a nil Notifier simply means no live subscribers get the event,
// the same degrade-gracefully behavior as a failed Enqueue.
type Notifier interface {
	Publish(ctx context.Context, event killmail.Event) error
}

// Config carries the ingestion service's environment-sourced tuning knobs.
type Config struct {
	Endpoint      string
	QueueID       string
	PollInterval  time.Duration
	TTWMin        int
	TTWMax        int
	NullThreshold int
	HTTPTimeout   time.Duration
	UserAgent     string
}

// Loop implements C4: pull → filter → persist → enqueue, on a configurable
// interval until its context is cancelled.
type Loop struct {
	cfg        Config
	httpClient *http.Client
	store      *killmail.Store
	rulesets   *ruleset.Cache
	classifier *sde.Classifier
	queue      EnrichmentQueue
	notifier   Notifier

	nullStreak atomic.Int32
	ttw        atomic.Int32
}

func NewLoop(cfg Config, store *killmail.Store, rulesets *ruleset.Cache, classifier *sde.Classifier, queue EnrichmentQueue) *Loop {
	if cfg.QueueID == "" {
		hostname, _ := os.Hostname()
		cfg.QueueID = fmt.Sprintf("battlescope-%s-%d", hostname, time.Now().Unix())
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://zkillredisq.stream/listen.php"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}

	loop := &Loop{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		store:      store,
		rulesets:   rulesets,
		classifier: classifier,
		queue:      queue,
	}
	loop.ttw.Store(int32(cfg.TTWMin))
	return loop
}

// WithNotifier attaches the SSE fan-out publisher. Called once at wiring
// time; absent in tests that don't exercise the stream.
func (l *Loop) WithNotifier(n Notifier) *Loop {
	l.notifier = n
	return l
}

// Run blocks until ctx is cancelled, polling the firehose every
// PollInterval and logging each iteration's Result except ResultEmpty.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := l.Tick(ctx)
			if err != nil {
				slog.Error("ingestion: tick failed", "error", err)
				continue
			}
			if result != ResultEmpty {
				slog.Info("ingestion: tick complete", "result", result)
			}
		}
	}
}

// Tick performs one pull → filter → persist → enqueue iteration.
func (l *Loop) Tick(ctx context.Context) (Result, error) {
	pkg, err := l.pull(ctx)
	if err != nil {
		return "", err
	}
	if pkg == nil {
		l.nullStreak.Add(1)
		if l.nullStreak.Load() >= int32(l.cfg.NullThreshold) {
			l.ttw.Store(int32(l.cfg.TTWMax))
		}
		return ResultEmpty, nil
	}
	l.nullStreak.Store(0)
	l.ttw.Store(int32(l.cfg.TTWMin))

	event, err := parseEvent(*pkg, l.cfg.Endpoint, time.Now())
	if err != nil {
		slog.Warn("ingestion: parse failed", "error", err, "kill_id", pkg.KillID)
		return ResultFiltered, nil
	}

	r, err := l.rulesets.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("ingestion: load ruleset: %w", err)
	}

	if evaluateFilter(event, r, l.classifier) == drop {
		return ResultFiltered, nil
	}

	insertResult, err := l.store.Insert(ctx, event)
	if err != nil {
		return "", fmt.Errorf("ingestion: persist event: %w", err)
	}
	if insertResult == killmail.Duplicate {
		return ResultDuplicate, nil
	}

	if err := l.queue.Enqueue(ctx, uint64(event.KillmailID)); err != nil {
		slog.Error("ingestion: enqueue failed, event already stored", "error", err, "killmail_id", event.KillmailID)
	}

	if l.notifier != nil {
		if err := l.notifier.Publish(ctx, event); err != nil {
			slog.Warn("ingestion: stream publish failed", "error", err, "killmail_id", event.KillmailID)
		}
	}

	return ResultStored, nil
}

// pull fetches one package from the firehose; a nil result means the queue
// was empty for this poll.
func (l *Loop) pull(ctx context.Context) (*firehosePackage, error) {
	url := fmt.Sprintf("%s?queueID=%s&ttw=%d", l.cfg.Endpoint, l.cfg.QueueID, l.ttw.Load())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: build request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingestion: pull request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingestion: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Package *firehosePackage `json:"package"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("ingestion: decode response: %w", err)
	}
	return envelope.Package, nil
}
