package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"battlescope/internal/identity"
	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

// Pool is C5's worker pool: N goroutines pulling from the enrichment queue,
// each resolving one killmail's identifiers via C3 and writing the
// resulting EnrichmentRecord state transition. Workers are independent; no
// global ordering is required.
type Pool struct {
	workers    int
	queue      *Queue
	store      *Store
	killmails  *killmail.Store
	identity   *identity.Client
	popTimeout time.Duration

	wg sync.WaitGroup
}

func NewPool(workers int, queue *Queue, store *Store, killmails *killmail.Store, idClient *identity.Client) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		workers:    workers,
		queue:      queue,
		store:      store,
		killmails:  killmails,
		identity:   idClient,
		popTimeout: 5 * time.Second,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled, then waits
// for in-flight jobs to finish before returning.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		killmailID, ok, err := p.queue.Dequeue(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("enrichment: dequeue failed", "worker", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		p.process(ctx, killmailID)
	}
}

func (p *Pool) process(ctx context.Context, killmailID uint64) {
	if err := p.store.ClaimProcessing(ctx, killmailID); err != nil {
		slog.Error("enrichment: claim failed", "killmail_id", killmailID, "error", err)
		return
	}

	event, err := p.killmails.GetByID(ctx, dto.U64(killmailID))
	if err != nil {
		slog.Error("enrichment: event lookup failed", "killmail_id", killmailID, "error", err)
		if err := p.store.MarkFailed(ctx, killmailID, "event_not_found"); err != nil {
			slog.Error("enrichment: mark failed errored", "error", err)
		}
		return
	}

	payload, retryable, err := p.resolve(ctx, event)
	if err != nil {
		if retryable {
			slog.Warn("enrichment: retryable failure, requeueing", "killmail_id", killmailID, "error", err)
			if err := p.store.RequeuePending(ctx, killmailID); err != nil {
				slog.Error("enrichment: requeue failed", "error", err)
				return
			}
			if err := p.queue.Enqueue(ctx, killmailID); err != nil {
				slog.Error("enrichment: requeue push failed", "killmail_id", killmailID, "error", err)
			}
			return
		}
		slog.Error("enrichment: non-retryable failure", "killmail_id", killmailID, "error", err)
		if err := p.store.MarkFailed(ctx, killmailID, "resolve_failed"); err != nil {
			slog.Error("enrichment: mark failed errored", "error", err)
		}
		return
	}

	if err := p.store.MarkSucceeded(ctx, killmailID, payload); err != nil {
		slog.Error("enrichment: mark succeeded failed", "killmail_id", killmailID, "error", err)
	}
}

// resolve batches identity lookups for the event's victim, attackers, and
// system. Only an error resolving the victim character (other than
// identity.ErrNotFound) fails the event, and it is reported as retryable; a
// failed lookup for the victim's corporation or alliance, an attacker, or
// the system just leaves that name out of the payload.
func (p *Pool) resolve(ctx context.Context, event killmail.Event) (Payload, bool, error) {
	var payload Payload

	if event.VictimCharacterID != nil {
		record, err := p.identity.Resolve(ctx, identity.ClassCharacter, int64(*event.VictimCharacterID))
		if err != nil && !errors.Is(err, identity.ErrNotFound) {
			return Payload{}, true, err
		}
		victim := &ResolvedParty{CharacterName: record.Name}
		if event.VictimCorpID != nil {
			if corp, err := p.identity.Resolve(ctx, identity.ClassCorporation, int64(*event.VictimCorpID)); err == nil {
				victim.CorporationName = corp.Name
			}
		}
		if event.VictimAllianceID != nil {
			if alliance, err := p.identity.Resolve(ctx, identity.ClassAlliance, int64(*event.VictimAllianceID)); err == nil {
				victim.AllianceName = alliance.Name
			}
		}
		payload.Victim = victim
	}

	attackerCharIDs := make([]int64, len(event.AttackerCharacterIDs))
	for i, id := range event.AttackerCharacterIDs {
		attackerCharIDs[i] = int64(id)
	}
	resolved := p.identity.ResolveBatch(ctx, identity.ClassCharacter, attackerCharIDs)
	for _, id := range attackerCharIDs {
		if record, ok := resolved[id]; ok {
			payload.Attackers = append(payload.Attackers, ResolvedParty{CharacterName: record.Name})
		}
	}

	if system, err := p.identity.Resolve(ctx, identity.ClassSystem, event.SystemID); err == nil {
		payload.System = &ResolvedName{ID: system.ID, Name: system.Name}
	}

	return payload, false, nil
}
