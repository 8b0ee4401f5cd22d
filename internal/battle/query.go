package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
	"battlescope/pkg/sde"
)

// ListFilter narrows ListBattles per spec.md §4.7's "list battles" route:
// any combination of security_type, alliance/corp/character/system, and a
// time range, cursor-paginated on (start_time DESC, id DESC).
type ListFilter struct {
	SecurityType *sde.SecurityType
	AllianceID   *dto.U64
	CorpID       *dto.U64
	CharacterID  *dto.U64
	SystemID     *int64
	Since        *time.Time
	Until        *time.Time
	Cursor       *killmail.Cursor
	Limit        int
}

// Page is one cursor-paginated slice of battles, plus the cursor to resume
// from for the next page (nil once exhausted).
type Page struct {
	Battles    []Battle
	NextCursor *killmail.Cursor
}

// Detail is a battle joined with its killmails and participants, the shape
// the "get battle by UUID" route returns.
type Detail struct {
	Battle       Battle
	Killmails    []KillmailEdge
	Participants []Participant
}

// AggregateStats summarizes one entity's (alliance/corp/character)
// involvement across all battles it appears in.
type AggregateStats struct {
	BattleCount       int
	KillCount         int
	LossCount         int
	ISKDestroyed      dto.U64
	ISKLost           dto.U64
}

// Summary is the dashboard's rollup: recent activity at a glance.
type Summary struct {
	ActiveBattles24h  int
	TotalKills24h     int
	TotalISKDestroyed dto.U64
	TopSystems        []SystemActivity
}

// SystemActivity is one row of the dashboard's "busiest systems" list.
type SystemActivity struct {
	SystemID   int64
	BattleCount int
	KillCount   int
}

// ListBattles implements the filtered, cursor-paginated battle list.
func (s *Store) ListBattles(ctx context.Context, f ListFilter) (Page, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	joinParticipants := f.AllianceID != nil || f.CorpID != nil || f.CharacterID != nil
	from := "battles b"
	if joinParticipants {
		from = "battles b JOIN battle_participants p ON p.battle_id = b.id"
	}

	if f.SecurityType != nil {
		where = append(where, "b.security_type = "+arg(string(*f.SecurityType)))
	}
	if f.SystemID != nil {
		where = append(where, "b.system_id = "+arg(*f.SystemID))
	}
	if f.Since != nil {
		where = append(where, "b.start_time >= "+arg(*f.Since))
	}
	if f.Until != nil {
		where = append(where, "b.start_time <= "+arg(*f.Until))
	}
	if f.AllianceID != nil {
		where = append(where, "p.alliance_id = "+arg(uint64(*f.AllianceID)))
	}
	if f.CorpID != nil {
		where = append(where, "p.corporation_id = "+arg(uint64(*f.CorpID)))
	}
	if f.CharacterID != nil {
		where = append(where, "p.character_id = "+arg(uint64(*f.CharacterID)))
	}
	if f.Cursor != nil {
		where = append(where, "(b.start_time, b.id) < ("+arg(f.Cursor.StartTime)+", "+arg(f.Cursor.ID)+")")
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT b.id, b.system_id, b.security_type, b.start_time, b.end_time,
			b.total_kills, b.total_isk_destroyed, b.related_url
		FROM %s
		WHERE %s
		ORDER BY b.start_time DESC, b.id DESC
		LIMIT %s
	`, from, joinWhere(where), arg(limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("battle: list battles: %w", err)
	}
	defer rows.Close()

	var battles []Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return Page{}, err
		}
		battles = append(battles, b)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	page := Page{Battles: battles}
	if len(battles) > limit {
		page.Battles = battles[:limit]
		last := page.Battles[len(page.Battles)-1]
		page.NextCursor = &killmail.Cursor{StartTime: last.StartTime, ID: last.ID}
	}
	return page, nil
}

func joinWhere(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

// GetByID implements the "get battle by UUID" route, joined with killmails
// and participants.
func (s *Store) GetByID(ctx context.Context, battleID string) (Detail, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, system_id, security_type, start_time, end_time,
			total_kills, total_isk_destroyed, related_url
		FROM battles WHERE id = $1
	`, battleID)
	b, err := scanBattleRow(row)
	if err != nil {
		return Detail{}, err
	}

	edges, err := s.killmailsForBattle(ctx, battleID)
	if err != nil {
		return Detail{}, err
	}
	participants, err := s.participantsForBattle(ctx, battleID)
	if err != nil {
		return Detail{}, err
	}

	return Detail{Battle: b, Killmails: edges, Participants: participants}, nil
}

func (s *Store) killmailsForBattle(ctx context.Context, battleID string) ([]KillmailEdge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT battle_id, killmail_id, victim_alliance_id, victim_corp_id,
			attacker_alliance_ids, isk_value, side_id
		FROM battle_killmails WHERE battle_id = $1
	`, battleID)
	if err != nil {
		return nil, fmt.Errorf("battle: list killmails: %w", err)
	}
	defer rows.Close()

	var edges []KillmailEdge
	for rows.Next() {
		var e KillmailEdge
		var killmailID uint64
		var victimAlliance, victimCorp, iskValue *uint64
		var attackerAlliances []uint64
		if err := rows.Scan(&e.BattleID, &killmailID, &victimAlliance, &victimCorp,
			&attackerAlliances, &iskValue, &e.SideID); err != nil {
			return nil, fmt.Errorf("battle: scan killmail edge: %w", err)
		}
		e.KillmailID = dto.U64(killmailID)
		e.VictimAllianceID = ptrDto(victimAlliance)
		e.VictimCorpID = ptrDto(victimCorp)
		e.ISKValue = ptrDto(iskValue)
		e.AttackerAllianceIDs = sliceDto(attackerAlliances)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *Store) participantsForBattle(ctx context.Context, battleID string) ([]Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT battle_id, character_id, ship_type_id, alliance_id, corporation_id,
			side_id, is_victim
		FROM battle_participants WHERE battle_id = $1
	`, battleID)
	if err != nil {
		return nil, fmt.Errorf("battle: list participants: %w", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var characterID, shipTypeID uint64
		var allianceID, corpID *uint64
		if err := rows.Scan(&p.BattleID, &characterID, &shipTypeID, &allianceID, &corpID,
			&p.SideID, &p.IsVictim); err != nil {
			return nil, fmt.Errorf("battle: scan participant: %w", err)
		}
		p.CharacterID = dto.U64(characterID)
		p.ShipTypeID = dto.U64(shipTypeID)
		p.AllianceID = ptrDto(allianceID)
		p.CorporationID = ptrDto(corpID)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// AllianceStats, CorpStats, and CharacterStats all resolve through this
// shared query shape: aggregate battle_participants by the given column.
func (s *Store) statsByColumn(ctx context.Context, column string, id dto.U64) (AggregateStats, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT p.battle_id),
			COUNT(DISTINCT p.battle_id) FILTER (WHERE NOT p.is_victim),
			COUNT(DISTINCT p.battle_id) FILTER (WHERE p.is_victim),
			COALESCE(SUM(b.total_isk_destroyed) FILTER (WHERE NOT p.is_victim), 0),
			COALESCE(SUM(b.total_isk_destroyed) FILTER (WHERE p.is_victim), 0)
		FROM battle_participants p
		JOIN battles b ON b.id = p.battle_id
		WHERE p.%s = $1
	`, column), uint64(id))

	var stats AggregateStats
	var iskDestroyed, iskLost uint64
	if err := row.Scan(&stats.BattleCount, &stats.KillCount, &stats.LossCount, &iskDestroyed, &iskLost); err != nil {
		return AggregateStats{}, fmt.Errorf("battle: stats by %s: %w", column, err)
	}
	stats.ISKDestroyed = dto.U64(iskDestroyed)
	stats.ISKLost = dto.U64(iskLost)
	return stats, nil
}

func (s *Store) AllianceStats(ctx context.Context, allianceID dto.U64) (AggregateStats, error) {
	return s.statsByColumn(ctx, "alliance_id", allianceID)
}

func (s *Store) CorpStats(ctx context.Context, corpID dto.U64) (AggregateStats, error) {
	return s.statsByColumn(ctx, "corporation_id", corpID)
}

func (s *Store) CharacterStats(ctx context.Context, characterID dto.U64) (AggregateStats, error) {
	return s.statsByColumn(ctx, "character_id", characterID)
}

// DashboardSummary rolls up the last 24 hours of activity for C7's
// dashboard route.
func (s *Store) DashboardSummary(ctx context.Context) (Summary, error) {
	since := time.Now().Add(-24 * time.Hour)

	var summary Summary
	var iskDestroyed uint64
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_kills), 0), COALESCE(SUM(total_isk_destroyed), 0)
		FROM battles WHERE start_time >= $1
	`, since)
	if err := row.Scan(&summary.ActiveBattles24h, &summary.TotalKills24h, &iskDestroyed); err != nil {
		return Summary{}, fmt.Errorf("battle: dashboard summary: %w", err)
	}
	summary.TotalISKDestroyed = dto.U64(iskDestroyed)

	rows, err := s.pool.Query(ctx, `
		SELECT system_id, COUNT(*), COALESCE(SUM(total_kills), 0)
		FROM battles WHERE start_time >= $1
		GROUP BY system_id
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`, since)
	if err != nil {
		return Summary{}, fmt.Errorf("battle: dashboard top systems: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sys SystemActivity
		if err := rows.Scan(&sys.SystemID, &sys.BattleCount, &sys.KillCount); err != nil {
			return Summary{}, fmt.Errorf("battle: scan system activity: %w", err)
		}
		summary.TopSystems = append(summary.TopSystems, sys)
	}
	return summary, rows.Err()
}

// ShipHistoryByCharacter backs the supplemented "GET
// /characters/{id}/ship-history" route: every hull a character is on record
// as having flown, most recent first.
func (s *Store) ShipHistoryByCharacter(ctx context.Context, characterID dto.U64, limit int) ([]ShipHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT character_id, killmail_id, ship_type_id, alliance_id, corporation_id,
			system_id, is_loss, ship_isk_value, killmail_isk_value, occurred_at
		FROM pilot_ship_history
		WHERE character_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, uint64(characterID), limit)
	if err != nil {
		return nil, fmt.Errorf("battle: ship history by character: %w", err)
	}
	defer rows.Close()
	return scanShipHistory(rows)
}

// PilotsByShipType backs the supplemented "GET /ships/{type_id}/pilots"
// route: every character on record as having flown a given hull.
func (s *Store) PilotsByShipType(ctx context.Context, shipTypeID dto.U64, limit int) ([]ShipHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT character_id, killmail_id, ship_type_id, alliance_id, corporation_id,
			system_id, is_loss, ship_isk_value, killmail_isk_value, occurred_at
		FROM pilot_ship_history
		WHERE ship_type_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, uint64(shipTypeID), limit)
	if err != nil {
		return nil, fmt.Errorf("battle: pilots by ship type: %w", err)
	}
	defer rows.Close()
	return scanShipHistory(rows)
}

func scanShipHistory(rows pgx.Rows) ([]ShipHistoryEntry, error) {
	var out []ShipHistoryEntry
	for rows.Next() {
		var h ShipHistoryEntry
		var characterID, killmailID, shipTypeID uint64
		var allianceID, corpID *uint64
		var shipISK, killmailISK uint64
		if err := rows.Scan(&characterID, &killmailID, &shipTypeID, &allianceID, &corpID,
			&h.SystemID, &h.IsLoss, &shipISK, &killmailISK, &h.OccurredAt); err != nil {
			return nil, fmt.Errorf("battle: scan ship history: %w", err)
		}
		h.CharacterID = dto.U64(characterID)
		h.KillmailID = dto.U64(killmailID)
		h.ShipTypeID = dto.U64(shipTypeID)
		h.AllianceID = ptrDto(allianceID)
		h.CorporationID = ptrDto(corpID)
		h.ShipISKValue = dto.U64(shipISK)
		h.KillmailISK = dto.U64(killmailISK)
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanBattle(rows pgx.Rows) (Battle, error) {
	var b Battle
	var securityType string
	var iskDestroyed uint64
	if err := rows.Scan(&b.ID, &b.SystemID, &securityType, &b.StartTime, &b.EndTime,
		&b.TotalKills, &iskDestroyed, &b.RelatedURL); err != nil {
		return Battle{}, fmt.Errorf("battle: scan battle: %w", err)
	}
	b.SecurityType = sde.SecurityType(securityType)
	b.TotalISKDestroyed = dto.U64(iskDestroyed)
	return b, nil
}

func scanBattleRow(row pgx.Row) (Battle, error) {
	var b Battle
	var securityType string
	var iskDestroyed uint64
	if err := row.Scan(&b.ID, &b.SystemID, &securityType, &b.StartTime, &b.EndTime,
		&b.TotalKills, &iskDestroyed, &b.RelatedURL); err != nil {
		return Battle{}, fmt.Errorf("battle: get battle: %w", err)
	}
	b.SecurityType = sde.SecurityType(securityType)
	b.TotalISKDestroyed = dto.U64(iskDestroyed)
	return b, nil
}

func ptrDto(v *uint64) *dto.U64 {
	if v == nil {
		return nil
	}
	d := dto.U64(*v)
	return &d
}

func sliceDto(vs []uint64) []dto.U64 {
	if vs == nil {
		return nil
	}
	out := make([]dto.U64, len(vs))
	for i, v := range vs {
		out[i] = dto.U64(v)
	}
	return out
}
