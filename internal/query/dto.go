// Package query implements C7: the huma v2 HTTP surface over the battle and
// killmail stores, hydrated through C8, plus the plain-net/http SSE route
// that the typed huma operation style can't express.
package query

import (
	"time"

	"battlescope/internal/battle"
	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/pkg/dto"
)

// BattleResponse is the wire shape of one battle, names hydrated via C8.
type BattleResponse struct {
	ID                string    `json:"id"`
	SystemID          int64     `json:"system_id"`
	SystemName        string    `json:"system_name,omitempty"`
	SecurityType      string    `json:"security_type"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TotalKills        int       `json:"total_kills"`
	TotalISKDestroyed string    `json:"total_isk_destroyed"`
	RelatedURL        string    `json:"related_url"`
}

// BattleDetailResponse extends BattleResponse with its killmail and
// participant rows, for the "get battle by UUID" route.
type BattleDetailResponse struct {
	Battle       BattleResponse         `json:"battle"`
	Killmails    []KillmailEdgeResponse `json:"killmails"`
	Participants []ParticipantResponse  `json:"participants"`
}

type KillmailEdgeResponse struct {
	KillmailID          string   `json:"killmail_id"`
	VictimAllianceID    *string  `json:"victim_alliance_id,omitempty"`
	VictimCorpID        *string  `json:"victim_corp_id,omitempty"`
	AttackerAllianceIDs []string `json:"attacker_alliance_ids,omitempty"`
	ISKValue            *string  `json:"isk_value,omitempty"`
	SideID              *string  `json:"side_id,omitempty"`
}

type ParticipantResponse struct {
	CharacterID   string  `json:"character_id"`
	CharacterName string  `json:"character_name,omitempty"`
	ShipTypeID    string  `json:"ship_type_id"`
	ShipTypeName  string  `json:"ship_type_name,omitempty"`
	AllianceID    *string `json:"alliance_id,omitempty"`
	CorporationID *string `json:"corporation_id,omitempty"`
	SideID        *string `json:"side_id,omitempty"`
	IsVictim      bool    `json:"is_victim"`
}

// KillmailResponse is the wire shape of one admitted event for the "recent
// killmails" route and the SSE stream.
type KillmailResponse struct {
	KillmailID        string    `json:"killmail_id"`
	SystemID          int64     `json:"system_id"`
	OccurredAt        time.Time `json:"occurred_at"`
	VictimAllianceID  *string   `json:"victim_alliance_id,omitempty"`
	VictimCorpID      *string   `json:"victim_corp_id,omitempty"`
	VictimCharacterID *string   `json:"victim_character_id,omitempty"`
	VictimShipTypeID  *string   `json:"victim_ship_type_id,omitempty"`
	ISKValue          *string   `json:"isk_value,omitempty"`
	BattleID          *string   `json:"battle_id,omitempty"`
}

// ShipHistoryEntryResponse is one row of a pilot's ship-history record.
type ShipHistoryEntryResponse struct {
	CharacterID   string    `json:"character_id"`
	KillmailID    string    `json:"killmail_id"`
	ShipTypeID    string    `json:"ship_type_id"`
	AllianceID    *string   `json:"alliance_id,omitempty"`
	CorporationID *string   `json:"corporation_id,omitempty"`
	SystemID      int64     `json:"system_id"`
	IsLoss        bool      `json:"is_loss"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AggregateStatsResponse answers the per-alliance/corp/character "aggregate
// statistics" route.
type AggregateStatsResponse struct {
	BattleCount  int    `json:"battle_count"`
	KillCount    int    `json:"kill_count"`
	LossCount    int    `json:"loss_count"`
	ISKDestroyed string `json:"isk_destroyed"`
	ISKLost      string `json:"isk_lost"`
}

// SummaryResponse is the dashboard rollup.
type SummaryResponse struct {
	ActiveBattles24h  int                      `json:"active_battles_24h"`
	TotalKills24h     int                      `json:"total_kills_24h"`
	TotalISKDestroyed string                   `json:"total_isk_destroyed"`
	TopSystems        []SystemActivityResponse `json:"top_systems"`
}

type SystemActivityResponse struct {
	SystemID    int64 `json:"system_id"`
	BattleCount int   `json:"battle_count"`
	KillCount   int   `json:"kill_count"`
}

// RulesetResponse is the wire shape of the single active admission ruleset.
type RulesetResponse struct {
	MinPilots            int      `json:"min_pilots"`
	TrackedAllianceIDs   []int64  `json:"tracked_alliance_ids"`
	TrackedCorpIDs       []int64  `json:"tracked_corp_ids"`
	TrackedSystemIDs     []int64  `json:"tracked_system_ids"`
	TrackedSecurityTypes []string `json:"tracked_security_types"`
	IgnoreUnlisted       bool      `json:"ignore_unlisted"`
	UpdatedBy            string    `json:"updated_by"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toRulesetResponse(r ruleset.Ruleset) RulesetResponse {
	types := make([]string, len(r.TrackedSecurityTypes))
	for i, t := range r.TrackedSecurityTypes {
		types[i] = string(t)
	}
	return RulesetResponse{
		MinPilots:            int(r.MinPilots),
		TrackedAllianceIDs:   r.TrackedAllianceIDs,
		TrackedCorpIDs:       r.TrackedCorpIDs,
		TrackedSystemIDs:     r.TrackedSystemIDs,
		TrackedSecurityTypes: types,
		IgnoreUnlisted:       r.IgnoreUnlisted,
		UpdatedBy:            r.UpdatedBy,
		UpdatedAt:            r.UpdatedAt,
	}
}

func toBattleResponse(b battle.Battle) BattleResponse {
	return BattleResponse{
		ID:                b.ID,
		SystemID:          b.SystemID,
		SecurityType:      string(b.SecurityType),
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		TotalKills:        b.TotalKills,
		TotalISKDestroyed: b.TotalISKDestroyed.String(),
		RelatedURL:        b.RelatedURL,
	}
}

func toKillmailEdgeResponse(e battle.KillmailEdge) KillmailEdgeResponse {
	resp := KillmailEdgeResponse{
		KillmailID: e.KillmailID.String(),
		SideID:     e.SideID,
	}
	resp.VictimAllianceID = u64PtrStr(e.VictimAllianceID)
	resp.VictimCorpID = u64PtrStr(e.VictimCorpID)
	resp.ISKValue = u64PtrStr(e.ISKValue)
	for _, id := range e.AttackerAllianceIDs {
		resp.AttackerAllianceIDs = append(resp.AttackerAllianceIDs, id.String())
	}
	return resp
}

func toParticipantResponse(p battle.Participant) ParticipantResponse {
	return ParticipantResponse{
		CharacterID:   p.CharacterID.String(),
		ShipTypeID:    p.ShipTypeID.String(),
		AllianceID:    u64PtrStr(p.AllianceID),
		CorporationID: u64PtrStr(p.CorporationID),
		SideID:        p.SideID,
		IsVictim:      p.IsVictim,
	}
}

func toKillmailResponse(e killmail.Event) KillmailResponse {
	return KillmailResponse{
		KillmailID:        e.KillmailID.String(),
		SystemID:          e.SystemID,
		OccurredAt:        e.OccurredAt,
		VictimAllianceID:  u64PtrStr(e.VictimAllianceID),
		VictimCorpID:      u64PtrStr(e.VictimCorpID),
		VictimCharacterID: u64PtrStr(e.VictimCharacterID),
		VictimShipTypeID:  u64PtrStr(e.VictimShipTypeID),
		ISKValue:          u64PtrStr(e.ISKValue),
		BattleID:          e.BattleID,
	}
}

func toShipHistoryResponse(h battle.ShipHistoryEntry) ShipHistoryEntryResponse {
	return ShipHistoryEntryResponse{
		CharacterID:   h.CharacterID.String(),
		KillmailID:    h.KillmailID.String(),
		ShipTypeID:    h.ShipTypeID.String(),
		AllianceID:    u64PtrStr(h.AllianceID),
		CorporationID: u64PtrStr(h.CorporationID),
		SystemID:      h.SystemID,
		IsLoss:        h.IsLoss,
		OccurredAt:    h.OccurredAt,
	}
}

func toAggregateStatsResponse(s battle.AggregateStats) AggregateStatsResponse {
	return AggregateStatsResponse{
		BattleCount:  s.BattleCount,
		KillCount:    s.KillCount,
		LossCount:    s.LossCount,
		ISKDestroyed: s.ISKDestroyed.String(),
		ISKLost:      s.ISKLost.String(),
	}
}

func toSummaryResponse(s battle.Summary) SummaryResponse {
	resp := SummaryResponse{
		ActiveBattles24h:  s.ActiveBattles24h,
		TotalKills24h:     s.TotalKills24h,
		TotalISKDestroyed: s.TotalISKDestroyed.String(),
	}
	for _, sys := range s.TopSystems {
		resp.TopSystems = append(resp.TopSystems, SystemActivityResponse{
			SystemID:    sys.SystemID,
			BattleCount: sys.BattleCount,
			KillCount:   sys.KillCount,
		})
	}
	return resp
}

func u64PtrStr(v *dto.U64) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
