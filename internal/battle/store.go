package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

// Store is C6's sole write surface onto Battle, BattleKillmail,
// BattleParticipant, and PilotShipHistory. Every mutating method not named
// WriteBattle runs a single query; WriteBattle runs the whole graph in one transaction,
// per the spec's "partial commit of a cluster is unacceptable" rule.
type Store struct {
	pool      *pgxpool.Pool
	killmails *killmail.Store
}

func NewStore(pool *pgxpool.Pool, killmails *killmail.Store) *Store {
	return &Store{pool: pool, killmails: killmails}
}

// WriteBattle upserts a closed cluster's full graph and marks its events
// processed, all inside one transaction. If the transaction fails, the
// caller's events remain unprocessed and will be retried next tick.
func (s *Store) WriteBattle(ctx context.Context, g graph, ts time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("battle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertBattle(ctx, tx, g.Battle); err != nil {
		return err
	}
	for _, edge := range g.Edges {
		if err := upsertEdge(ctx, tx, edge); err != nil {
			return err
		}
	}
	for _, p := range g.Participants {
		if err := upsertParticipant(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, h := range g.ShipHistory {
		if err := upsertShipHistory(ctx, tx, h); err != nil {
			return err
		}
	}

	// processed_at IS NULL is the cross-replica mutual-exclusion guard: if
	// another replica already claimed and committed these events, this
	// UPDATE touches zero rows and the whole transaction is rolled back,
	// discarding this replica's cluster attempt per the spec's
	// first-commit-wins rule.
	tag, err := tx.Exec(ctx, `
		UPDATE killmail_events
		SET processed_at = $1, battle_id = $2
		WHERE killmail_id = ANY($3) AND processed_at IS NULL
	`, ts, g.Battle.ID, g.KillmailIDs)
	if err != nil {
		return fmt.Errorf("battle: mark processed: %w", err)
	}
	if int(tag.RowsAffected()) != len(g.KillmailIDs) {
		return fmt.Errorf("battle: lost race for cluster in system %d: %d/%d events already claimed",
			g.Battle.SystemID, len(g.KillmailIDs)-int(tag.RowsAffected()), len(g.KillmailIDs))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("battle: commit: %w", err)
	}
	return nil
}

// MarkBelowThreshold implements step 4's "if" branch: a cluster too small
// to be a battle is still marked processed, with a null battle_id, so it is
// never reconsidered.
func (s *Store) MarkBelowThreshold(ctx context.Context, killmailIDs []uint64, ts time.Time) error {
	if len(killmailIDs) == 0 {
		return nil
	}
	ids := make([]dto.U64, len(killmailIDs))
	for i, id := range killmailIDs {
		ids[i] = dto.U64(id)
	}
	return s.killmails.MarkProcessed(ctx, ids, nil, ts)
}

func upsertBattle(ctx context.Context, tx pgx.Tx, b Battle) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO battles (
			id, system_id, security_type, start_time, end_time,
			total_kills, total_isk_destroyed, related_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			total_kills = EXCLUDED.total_kills,
			total_isk_destroyed = EXCLUDED.total_isk_destroyed
	`, b.ID, b.SystemID, string(b.SecurityType), b.StartTime, b.EndTime,
		b.TotalKills, uint64(b.TotalISKDestroyed), b.RelatedURL)
	if err != nil {
		return fmt.Errorf("battle: upsert battle: %w", err)
	}
	return nil
}

func upsertEdge(ctx context.Context, tx pgx.Tx, e KillmailEdge) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO battle_killmails (
			battle_id, killmail_id, victim_alliance_id, victim_corp_id,
			attacker_alliance_ids, isk_value, side_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (battle_id, killmail_id) DO NOTHING
	`, e.BattleID, uint64(e.KillmailID), u64PtrVal(e.VictimAllianceID), u64PtrVal(e.VictimCorpID),
		u64SliceVal(e.AttackerAllianceIDs), u64PtrVal(e.ISKValue), e.SideID)
	if err != nil {
		return fmt.Errorf("battle: upsert edge: %w", err)
	}
	return nil
}

func upsertParticipant(ctx context.Context, tx pgx.Tx, p Participant) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO battle_participants (
			battle_id, character_id, ship_type_id, alliance_id, corporation_id,
			side_id, is_victim
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (battle_id, character_id, ship_type_id) DO UPDATE SET
			is_victim = battle_participants.is_victim OR EXCLUDED.is_victim
	`, p.BattleID, uint64(p.CharacterID), uint64(p.ShipTypeID),
		u64PtrVal(p.AllianceID), u64PtrVal(p.CorporationID), p.SideID, p.IsVictim)
	if err != nil {
		return fmt.Errorf("battle: upsert participant: %w", err)
	}
	return nil
}

func upsertShipHistory(ctx context.Context, tx pgx.Tx, h ShipHistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO pilot_ship_history (
			character_id, killmail_id, ship_type_id, alliance_id, corporation_id,
			system_id, is_loss, ship_isk_value, killmail_isk_value, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (character_id, killmail_id) DO NOTHING
	`, uint64(h.CharacterID), uint64(h.KillmailID), uint64(h.ShipTypeID),
		u64PtrVal(h.AllianceID), u64PtrVal(h.CorporationID), h.SystemID, h.IsLoss,
		uint64(h.ShipISKValue), uint64(h.KillmailISK), h.OccurredAt)
	if err != nil {
		return fmt.Errorf("battle: upsert ship history: %w", err)
	}
	return nil
}

func u64PtrVal(v *dto.U64) *uint64 {
	if v == nil {
		return nil
	}
	u := uint64(*v)
	return &u
}

func u64SliceVal(vs []dto.U64) []uint64 {
	if vs == nil {
		return nil
	}
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = uint64(v)
	}
	return out
}
