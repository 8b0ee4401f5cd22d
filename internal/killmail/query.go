package killmail

import (
	"context"
	"fmt"
	"time"

	"battlescope/pkg/dto"
)

// RecentFilter narrows ListRecent per spec.md §4.7's "recent killmails"
// route: any combination of character, corp, alliance, and system, cursor
// paginated newest-first.
type RecentFilter struct {
	CharacterID *dto.U64
	CorpID      *dto.U64
	AllianceID  *dto.U64
	SystemID    *int64
	Since       *time.Time
	Cursor      *Cursor
	Limit       int
}

// RecentPage is one cursor-paginated slice of events, plus the cursor to
// resume from for the next page (nil once exhausted).
type RecentPage struct {
	Events     []Event
	NextCursor *Cursor
}

// ListRecent returns admitted events ordered newest-first, the read path
// backing both the "recent killmails" route and the SSE stream's initial
// snapshot event.
func (s *Store) ListRecent(ctx context.Context, f RecentFilter) (RecentPage, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CharacterID != nil {
		where = append(where, "(victim_character_id = "+arg(uint64(*f.CharacterID))+" OR "+arg(uint64(*f.CharacterID))+" = ANY(attacker_character_ids))")
	}
	if f.CorpID != nil {
		where = append(where, "(victim_corp_id = "+arg(uint64(*f.CorpID))+" OR "+arg(uint64(*f.CorpID))+" = ANY(attacker_corp_ids))")
	}
	if f.AllianceID != nil {
		where = append(where, "(victim_alliance_id = "+arg(uint64(*f.AllianceID))+" OR "+arg(uint64(*f.AllianceID))+" = ANY(attacker_alliance_ids))")
	}
	if f.SystemID != nil {
		where = append(where, "system_id = "+arg(*f.SystemID))
	}
	if f.Since != nil {
		where = append(where, "occurred_at >= "+arg(*f.Since))
	}
	if f.Cursor != nil {
		where = append(where, "(occurred_at, killmail_id::text) < ("+arg(f.Cursor.StartTime)+", "+arg(f.Cursor.ID)+")")
	}

	clause := where[0]
	for _, c := range where[1:] {
		clause += " AND " + c
	}

	query := fmt.Sprintf(`
		SELECT killmail_id, system_id, occurred_at,
			victim_alliance_id, victim_corp_id, victim_character_id,
			attacker_alliance_ids, attacker_corp_ids, attacker_character_ids,
			isk_value, source_url, fetched_at, processed_at, battle_id,
			victim_ship_type_id, attackers
		FROM killmail_events
		WHERE %s
		ORDER BY occurred_at DESC, killmail_id DESC
		LIMIT %s
	`, clause, arg(limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return RecentPage{}, fmt.Errorf("killmail: list recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return RecentPage{}, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return RecentPage{}, err
	}

	page := RecentPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		last := page.Events[len(page.Events)-1]
		page.NextCursor = &Cursor{StartTime: last.OccurredAt, ID: last.KillmailID.String()}
	}
	return page, nil
}
