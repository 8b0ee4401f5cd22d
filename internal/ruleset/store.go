package ruleset

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActiveRulesetID is the fixed UUID of the single active ruleset row.
const ActiveRulesetID = "00000000-0000-0000-0000-000000000001"

// Store is C2's backing persistence: a single-row table C7 mutates.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context) (Ruleset, error) {
	var r Ruleset
	var securityTypes []string
	err := s.pool.QueryRow(ctx, `
		SELECT id, min_pilots, tracked_alliance_ids, tracked_corp_ids,
			tracked_system_ids, tracked_security_types, ignore_unlisted,
			updated_by, created_at, updated_at
		FROM rulesets WHERE id = $1
	`, ActiveRulesetID).Scan(
		&r.ID, &r.MinPilots, &r.TrackedAllianceIDs, &r.TrackedCorpIDs,
		&r.TrackedSystemIDs, &securityTypes, &r.IgnoreUnlisted,
		&r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Ruleset{}, fmt.Errorf("ruleset: get: %w", err)
	}
	r.TrackedSecurityTypes = make([]SecurityType, len(securityTypes))
	for i, t := range securityTypes {
		r.TrackedSecurityTypes[i] = SecurityType(t)
	}
	return r, nil
}

// Update replaces the active ruleset's mutable fields and bumps updated_at.
// Callers must have already run Validate.
func (s *Store) Update(ctx context.Context, r Ruleset) (Ruleset, error) {
	securityTypes := make([]string, len(r.TrackedSecurityTypes))
	for i, t := range r.TrackedSecurityTypes {
		securityTypes[i] = string(t)
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE rulesets SET
			min_pilots = $1, tracked_alliance_ids = $2, tracked_corp_ids = $3,
			tracked_system_ids = $4, tracked_security_types = $5, ignore_unlisted = $6,
			updated_by = $7, updated_at = $8
		WHERE id = $9
	`,
		r.MinPilots, r.TrackedAllianceIDs, r.TrackedCorpIDs,
		r.TrackedSystemIDs, securityTypes, r.IgnoreUnlisted,
		r.UpdatedBy, now, ActiveRulesetID,
	)
	if err != nil {
		return Ruleset{}, fmt.Errorf("ruleset: update: %w", err)
	}
	return s.Get(ctx)
}

// EnsureSeeded inserts a permissive default ruleset if no active row exists
// yet, so a fresh deployment admits everything until an operator configures
// tracked lists.
func (s *Store) EnsureSeeded(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rulesets (id, min_pilots, ignore_unlisted, updated_by, created_at, updated_at)
		VALUES ($1, 1, false, 'system', now(), now())
		ON CONFLICT (id) DO NOTHING
	`, ActiveRulesetID)
	if err != nil {
		return fmt.Errorf("ruleset: ensure seeded: %w", err)
	}
	return nil
}
