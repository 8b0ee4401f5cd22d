package battle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"battlescope/internal/killmail"
	"battlescope/pkg/sde"
)

// Engine drives C6's tick loop: on each tick it fetches a batch of
// unprocessed events, clusters them, and materializes or discards each
// closed cluster. Clustering is stateless between ticks; the event store's
// processed_at cursor is the only state.
type Engine struct {
	params     Params
	killmails  *killmail.Store
	store      *Store
	classifier *sde.Classifier

	schedule string
	cron     *cron.Cron
}

// NewEngine builds a tick driver that runs once a minute by default. The
// schedule can be tightened or loosened per deployment with WithSchedule
// (a standard five-field cron expression or an "@every" duration spec).
func NewEngine(params Params, killmails *killmail.Store, store *Store, classifier *sde.Classifier) *Engine {
	return &Engine{
		params:     params,
		killmails:  killmails,
		store:      store,
		classifier: classifier,
		schedule:   "@every 1m",
	}
}

// WithSchedule overrides the default per-minute tick cadence.
func (e *Engine) WithSchedule(schedule string) *Engine {
	e.schedule = schedule
	return e
}

// Run starts the cron scheduler and blocks until ctx is cancelled, at which
// point it stops the scheduler and waits for any in-flight tick to finish.
func (e *Engine) Run(ctx context.Context) {
	e.cron = cron.New()
	if _, err := e.cron.AddFunc(e.schedule, func() {
		if err := e.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "battle: tick failed", "error", err)
		}
	}); err != nil {
		slog.ErrorContext(ctx, "battle: invalid tick schedule", "schedule", e.schedule, "error", err)
		return
	}

	e.cron.Start()
	<-ctx.Done()
	<-e.cron.Stop().Done()
}

// Stop requests an orderly shutdown; Run's ctx cancellation is the normal
// path, this is for callers that stop the engine independently of ctx.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// Tick implements the per-tick algorithm in full: fetch, group, walk,
// close, and either discard or materialize each cluster. Each closed
// cluster is written independently, so one failing cluster's events stay
// unprocessed for retry without blocking the rest of the batch.
func (e *Engine) Tick(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(e.params.ProcessingDelayMinutes) * time.Minute)

	events, err := e.killmails.FetchUnprocessed(ctx, e.params.BatchSize)
	if err != nil {
		return fmt.Errorf("battle: fetch unprocessed: %w", err)
	}

	eligible := events[:0:0]
	for _, ev := range events {
		if !ev.OccurredAt.After(cutoff) {
			eligible = append(eligible, ev)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	now := time.Now()
	for _, c := range groupAndWalk(eligible, e.params) {
		if len(c.events) < e.params.MinKills {
			ids := make([]uint64, len(c.events))
			for i, ev := range c.events {
				ids[i] = uint64(ev.KillmailID)
			}
			if err := e.store.MarkBelowThreshold(ctx, ids, now); err != nil {
				slog.ErrorContext(ctx, "battle: mark below threshold failed", "system_id", c.systemID, "error", err)
			}
			continue
		}

		g := buildGraph(c, e.classifier)
		if err := e.store.WriteBattle(ctx, g, now); err != nil {
			slog.ErrorContext(ctx, "battle: write failed, events remain unprocessed", "system_id", c.systemID, "error", err)
		}
	}
	return nil
}
