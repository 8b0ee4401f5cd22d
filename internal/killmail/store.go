package killmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"battlescope/pkg/dto"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store is C1's sole persistence surface: pgx-backed, deduplicated on
// killmail_id, with a processed_at/battle_id cursor the clustering engine
// advances.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes an admitted event. Duplicate detection is by primary-key
// violation, reported as Duplicate rather than returned as an error, so the
// ingestion loop's result enum can distinguish "already have this" from a
// genuine failure.
func (s *Store) Insert(ctx context.Context, event Event) (InsertResult, error) {
	attackers, err := json.Marshal(event.Attackers)
	if err != nil {
		return 0, fmt.Errorf("killmail: marshal attacker detail: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO killmail_events (
			killmail_id, system_id, occurred_at,
			victim_alliance_id, victim_corp_id, victim_character_id,
			attacker_alliance_ids, attacker_corp_ids, attacker_character_ids,
			isk_value, source_url, fetched_at,
			victim_ship_type_id, attackers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		uint64(event.KillmailID), event.SystemID, event.OccurredAt,
		u64Ptr(event.VictimAllianceID), u64Ptr(event.VictimCorpID), u64Ptr(event.VictimCharacterID),
		u64Slice(event.AttackerAllianceIDs), u64Slice(event.AttackerCorpIDs), u64Slice(event.AttackerCharacterIDs),
		u64Ptr(event.ISKValue), event.SourceURL, event.FetchedAt,
		u64Ptr(event.VictimShipTypeID), attackers,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Duplicate, nil
		}
		return 0, fmt.Errorf("killmail: insert: %w", err)
	}
	return Stored, nil
}

// FetchUnprocessed returns up to limit events with processed_at IS NULL,
// ordered oldest-first with a stable killmail_id tie-break. The query carries
// FOR UPDATE SKIP LOCKED but runs outside any transaction, so its row locks
// end with the statement and two clustering replicas can read the same batch;
// the processed_at IS NULL guard in battle.Store.WriteBattle decides which
// replica's write wins.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT killmail_id, system_id, occurred_at,
			victim_alliance_id, victim_corp_id, victim_character_id,
			attacker_alliance_ids, attacker_corp_ids, attacker_character_ids,
			isk_value, source_url, fetched_at, processed_at, battle_id,
			victim_ship_type_id, attackers
		FROM killmail_events
		WHERE processed_at IS NULL
		ORDER BY occurred_at ASC, killmail_id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("killmail: fetch unprocessed: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkProcessed atomically attaches battleID (which may be nil when a
// cluster failed its min_kills threshold) and the processed timestamp to
// every listed killmail that is still unprocessed; rows already processed
// keep their values.
func (s *Store) MarkProcessed(ctx context.Context, killmailIDs []dto.U64, battleID *string, ts time.Time) error {
	if len(killmailIDs) == 0 {
		return nil
	}
	ids := make([]uint64, len(killmailIDs))
	for i, id := range killmailIDs {
		ids[i] = uint64(id)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE killmail_events
		SET processed_at = $1, battle_id = $2
		WHERE killmail_id = ANY($3) AND processed_at IS NULL
	`, ts, battleID, ids)
	if err != nil {
		return fmt.Errorf("killmail: mark processed: %w", err)
	}
	return nil
}

// GetByID returns a single event by killmail_id, or pgx.ErrNoRows.
func (s *Store) GetByID(ctx context.Context, killmailID dto.U64) (Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT killmail_id, system_id, occurred_at,
			victim_alliance_id, victim_corp_id, victim_character_id,
			attacker_alliance_ids, attacker_corp_ids, attacker_character_ids,
			isk_value, source_url, fetched_at, processed_at, battle_id,
			victim_ship_type_id, attackers
		FROM killmail_events WHERE killmail_id = $1
	`, uint64(killmailID))
	if err != nil {
		return Event{}, fmt.Errorf("killmail: get by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Event{}, pgx.ErrNoRows
	}
	return scanEvent(rows)
}

func scanEvent(rows pgx.Rows) (Event, error) {
	var e Event
	var iskValue, victimAlliance, victimCorp, victimChar, victimShipType *uint64
	var attackerAlliances, attackerCorps, attackerChars []uint64
	var attackers []byte
	var kmID uint64

	if err := rows.Scan(
		&kmID, &e.SystemID, &e.OccurredAt,
		&victimAlliance, &victimCorp, &victimChar,
		&attackerAlliances, &attackerCorps, &attackerChars,
		&iskValue, &e.SourceURL, &e.FetchedAt, &e.ProcessedAt, &e.BattleID,
		&victimShipType, &attackers,
	); err != nil {
		return Event{}, fmt.Errorf("killmail: scan event: %w", err)
	}

	e.KillmailID = dto.U64(kmID)
	e.VictimAllianceID = ptrU64(victimAlliance)
	e.VictimCorpID = ptrU64(victimCorp)
	e.VictimCharacterID = ptrU64(victimChar)
	e.ISKValue = ptrU64(iskValue)
	e.AttackerAllianceIDs = sliceU64(attackerAlliances)
	e.AttackerCorpIDs = sliceU64(attackerCorps)
	e.AttackerCharacterIDs = sliceU64(attackerChars)
	e.VictimShipTypeID = ptrU64(victimShipType)

	if len(attackers) > 0 {
		if err := json.Unmarshal(attackers, &e.Attackers); err != nil {
			return Event{}, fmt.Errorf("killmail: unmarshal attacker detail: %w", err)
		}
	}
	return e, nil
}

func u64Ptr(v *dto.U64) *uint64 {
	if v == nil {
		return nil
	}
	u := uint64(*v)
	return &u
}

func ptrU64(v *uint64) *dto.U64 {
	if v == nil {
		return nil
	}
	u := dto.U64(*v)
	return &u
}

func u64Slice(vs []dto.U64) []uint64 {
	if vs == nil {
		return nil
	}
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = uint64(v)
	}
	return out
}

func sliceU64(vs []uint64) []dto.U64 {
	if vs == nil {
		return nil
	}
	out := make([]dto.U64, len(vs))
	for i, v := range vs {
		out[i] = dto.U64(v)
	}
	return out
}
