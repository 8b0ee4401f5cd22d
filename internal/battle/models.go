// Package battle implements C6, the clustering engine: a periodic batch
// process that reads unprocessed killmail events (C1), groups them into
// battles by system and temporal adjacency, and writes the battle graph
// (Battle, BattleKillmail, BattleParticipant, PilotShipHistory) in a single
// transaction per cluster.
package battle

import (
	"time"

	"battlescope/pkg/dto"
	"battlescope/pkg/sde"
)

// Params are the clustering thresholds from spec.md §4.6, each overridable
// per deployment via config.
type Params struct {
	WindowMinutes          int
	GapMaxMinutes          int
	MinKills               int
	ProcessingDelayMinutes int
	BatchSize              int
}

// DefaultParams matches the spec's stated defaults.
func DefaultParams() Params {
	return Params{
		WindowMinutes:          30,
		GapMaxMinutes:          15,
		MinKills:               2,
		ProcessingDelayMinutes: 30,
		BatchSize:              500,
	}
}

// Battle is a computed cluster of killmails adjacent in system and time.
type Battle struct {
	ID                string
	SystemID          int64
	SecurityType      sde.SecurityType
	StartTime         time.Time
	EndTime           time.Time
	TotalKills        int
	TotalISKDestroyed dto.U64
	RelatedURL        string
}

// KillmailEdge denormalizes a battle's participant-facing killmail summary
// onto the battle↔killmail edge, avoiding a join back to killmail_events for
// the common "list battle's kills" read path.
type KillmailEdge struct {
	BattleID            string
	KillmailID          dto.U64
	VictimAllianceID    *dto.U64
	VictimCorpID        *dto.U64
	AttackerAllianceIDs []dto.U64
	ISKValue            *dto.U64
	SideID              *string
}

// Participant is a (battle, character, ship_type) triple: one row per
// distinct hull a character flew during the battle.
type Participant struct {
	BattleID      string
	CharacterID   dto.U64
	ShipTypeID    dto.U64
	AllianceID    *dto.U64
	CorporationID *dto.U64
	SideID        *string
	IsVictim      bool
}

// ShipHistoryEntry is one row per (character, killmail): the pilot's hull,
// affiliation, and outcome at the moment of that event. Populated by C6
// whenever it attaches a killmail to a battle.
type ShipHistoryEntry struct {
	CharacterID   dto.U64
	KillmailID    dto.U64
	ShipTypeID    dto.U64
	AllianceID    *dto.U64
	CorporationID *dto.U64
	SystemID      int64
	IsLoss        bool
	ShipISKValue  dto.U64
	KillmailISK   dto.U64
	OccurredAt    time.Time
}

// cluster is the in-memory accumulation of one system-group's time-ordered
// walk before it is closed and either discarded (below min_kills) or
// materialized into a Battle.
type cluster struct {
	systemID int64
	events   []clusterEvent
}

// clusterEvent is the subset of killmail.Event the clustering walk and
// battle-graph builder need; toClusterEvent copies it out of each fetched
// killmail.Event.
type clusterEvent struct {
	KillmailID          dto.U64
	SystemID            int64
	OccurredAt          time.Time
	VictimCharacterID   *dto.U64
	VictimCorpID        *dto.U64
	VictimAllianceID    *dto.U64
	VictimShipTypeID    *dto.U64
	AttackerAllianceIDs []dto.U64
	ISKValue            *dto.U64
	Attackers           []clusterAttacker
}

type clusterAttacker struct {
	CharacterID   *dto.U64
	CorporationID *dto.U64
	AllianceID    *dto.U64
	ShipTypeID    *dto.U64
}

func (c *cluster) first() clusterEvent { return c.events[0] }
func (c *cluster) last() clusterEvent  { return c.events[len(c.events)-1] }
