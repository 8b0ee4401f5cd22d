package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists EnrichmentRecord state transitions. Uniqueness on
// killmail_id plus idempotent upserts let multiple worker replicas race
// safely with no global ordering requirement.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ClaimProcessing upserts a record into the processing state, incrementing
// the attempt counter. Idempotent: re-claiming an already-processing record
// is a no-op besides the attempt bump.
func (s *Store) ClaimProcessing(ctx context.Context, killmailID uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrichment_records (killmail_id, status, attempts, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (killmail_id) DO UPDATE SET
			status = $2, attempts = enrichment_records.attempts + 1, updated_at = now()
	`, killmailID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("enrichment: claim processing: %w", err)
	}
	return nil
}

// MarkSucceeded writes the resolved payload and succeeded status.
func (s *Store) MarkSucceeded(ctx context.Context, killmailID uint64, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enrichment: marshal payload: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		UPDATE enrichment_records
		SET status = $1, payload = $2, fetched_at = $3, error_tag = '', updated_at = $3
		WHERE killmail_id = $4
	`, StatusSucceeded, raw, now, killmailID)
	if err != nil {
		return fmt.Errorf("enrichment: mark succeeded: %w", err)
	}
	return nil
}

// MarkFailed writes a terminal failure with a short error tag.
func (s *Store) MarkFailed(ctx context.Context, killmailID uint64, errorTag string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_records
		SET status = $1, error_tag = $2, updated_at = now()
		WHERE killmail_id = $3
	`, StatusFailed, errorTag, killmailID)
	if err != nil {
		return fmt.Errorf("enrichment: mark failed: %w", err)
	}
	return nil
}

// RequeuePending resets a record to pending after a retryable failure
// (network error, 5xx) so another worker attempt can pick it up.
func (s *Store) RequeuePending(ctx context.Context, killmailID uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_records SET status = $1, updated_at = now() WHERE killmail_id = $2
	`, StatusPending, killmailID)
	if err != nil {
		return fmt.Errorf("enrichment: requeue pending: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, killmailID uint64) (Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, `
		SELECT killmail_id, status, payload, error_tag, attempts, fetched_at, updated_at
		FROM enrichment_records WHERE killmail_id = $1
	`, killmailID).Scan(&r.KillmailID, &r.Status, &r.Payload, &r.ErrorTag, &r.Attempts, &r.FetchedAt, &r.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("enrichment: get: %w", err)
	}
	return r, nil
}
