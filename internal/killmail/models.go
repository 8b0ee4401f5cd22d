// Package killmail implements C1, the append-only event store of admitted
// killmail events: insertion deduplicated on killmail_id, a processed_at/
// battle_id cursor for the clustering engine, and the paginated listing
// queries the query surface (C7) reads from.
package killmail

import (
	"time"

	"battlescope/pkg/dto"
)

// Event is the admitted fact C1 owns. processed_at and battle_id are set
// exactly once, together, by the clustering engine (C6); until then both
// are nil.
type Event struct {
	KillmailID dto.U64
	SystemID   int64
	OccurredAt time.Time

	VictimAllianceID  *dto.U64
	VictimCorpID      *dto.U64
	VictimCharacterID *dto.U64

	AttackerAllianceIDs  []dto.U64
	AttackerCorpIDs      []dto.U64
	AttackerCharacterIDs []dto.U64

	ISKValue  *dto.U64
	SourceURL string
	FetchedAt time.Time

	ProcessedAt *time.Time
	BattleID    *string

	// VictimShipTypeID and Attackers carry the per-participant ship type the
	// clustering engine (C6) needs to build BattleParticipant and
	// PilotShipHistory rows. The spec's KillmailEvent field list above is
	// the dedup'd ID-set view used for admission filtering and storage
	// invariants; these are additional columns alongside it, not a
	// replacement, since ship type has no bearing on admission or dedup.
	VictimShipTypeID *dto.U64
	Attackers        []AttackerDetail
}

// AttackerDetail preserves one attacker's full identity/ship/damage record,
// since the dedup'd ID-set fields above lose the per-attacker association
// between a character and the ship they flew.
type AttackerDetail struct {
	CharacterID   *dto.U64
	CorporationID *dto.U64
	AllianceID    *dto.U64
	ShipTypeID    *dto.U64
	DamageDone    int64
	FinalBlow     bool
}

// ParticipantCount implements the admission-filter's floor-1 pilot count:
// victim presence (if any) plus distinct attacker characters.
func (e Event) ParticipantCount() int {
	count := len(e.AttackerCharacterIDs)
	if e.VictimCharacterID != nil {
		count++
	}
	if count < 1 {
		return 1
	}
	return count
}

// InsertResult is C1's insert() outcome: duplicate detection is reported,
// not raised, so the ingestion loop's result enum can distinguish it from
// a hard failure.
type InsertResult int

const (
	Stored InsertResult = iota
	Duplicate
)

// Cursor opaquely encodes the last (start_time, id) tuple of a battle page
// for C7's keyset pagination.
type Cursor struct {
	StartTime time.Time
	ID        string
}
