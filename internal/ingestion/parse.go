// Package ingestion implements C4: a long-poll puller that pulls killmail
// references from the upstream firehose, filters them against the current
// ruleset (C2), persists admitted events to the store (C1), and enqueues
// them for enrichment (C5).
package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

// firehosePackage mirrors the long-poll source's wire envelope: a null
// package means the queue is currently empty.
type firehosePackage struct {
	KillID   int64           `json:"killID"`
	Killmail json.RawMessage `json:"killmail"`
	Meta     firehoseMeta    `json:"zkb"`
}

type firehoseMeta struct {
	LocationID     int64   `json:"locationID"`
	Hash           string  `json:"hash"`
	DestroyedValue float64 `json:"destroyedValue"`
	DroppedValue   float64 `json:"droppedValue"`
}

type firehoseKillmail struct {
	KillmailID    int64               `json:"killmail_id"`
	KillmailTime  time.Time           `json:"killmail_time"`
	SolarSystemID int64               `json:"solar_system_id"`
	Victim        firehoseVictim      `json:"victim"`
	Attackers     []firehoseAttacker  `json:"attackers"`
}

type firehoseVictim struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
}

type firehoseAttacker struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
	DamageDone    int64  `json:"damage_done"`
	FinalBlow     bool   `json:"final_blow"`
}

var errMissingRequiredFields = fmt.Errorf("ingestion: killmail missing required fields")

// parseEvent converts a raw firehose package into a killmail.Event, deduping
// attacker ID lists and dropping nulls, and rejecting on missing required
// fields (killmail_id, solar_system_id, killmail_time).
func parseEvent(pkg firehosePackage, sourceURL string, fetchedAt time.Time) (killmail.Event, error) {
	var km firehoseKillmail
	if err := json.Unmarshal(pkg.Killmail, &km); err != nil {
		return killmail.Event{}, fmt.Errorf("ingestion: unmarshal killmail: %w", err)
	}

	if km.KillmailID == 0 || km.SolarSystemID == 0 || km.KillmailTime.IsZero() {
		return killmail.Event{}, errMissingRequiredFields
	}

	event := killmail.Event{
		KillmailID: dto.U64(km.KillmailID),
		SystemID:   km.SolarSystemID,
		OccurredAt: km.KillmailTime,
		SourceURL:  sourceURL,
		FetchedAt:  fetchedAt,
	}

	if km.Victim.CharacterID != nil {
		v := dto.U64(*km.Victim.CharacterID)
		event.VictimCharacterID = &v
	}
	if km.Victim.CorporationID != nil {
		v := dto.U64(*km.Victim.CorporationID)
		event.VictimCorpID = &v
	}
	if km.Victim.AllianceID != nil {
		v := dto.U64(*km.Victim.AllianceID)
		event.VictimAllianceID = &v
	}
	if km.Victim.ShipTypeID != nil {
		v := dto.U64(*km.Victim.ShipTypeID)
		event.VictimShipTypeID = &v
	}

	event.AttackerCharacterIDs = dedupeIDs(attackerIDs(km.Attackers, func(a firehoseAttacker) *int64 { return a.CharacterID }))
	event.AttackerCorpIDs = dedupeIDs(attackerIDs(km.Attackers, func(a firehoseAttacker) *int64 { return a.CorporationID }))
	event.AttackerAllianceIDs = dedupeIDs(attackerIDs(km.Attackers, func(a firehoseAttacker) *int64 { return a.AllianceID }))
	event.Attackers = attackerDetails(km.Attackers)

	if pkg.Meta.DestroyedValue > 0 {
		isk := dto.U64(uint64(pkg.Meta.DestroyedValue))
		event.ISKValue = &isk
	}

	return event, nil
}

// attackerDetails preserves the per-attacker character/ship association the
// dedup'd ID-set fields above discard.
func attackerDetails(attackers []firehoseAttacker) []killmail.AttackerDetail {
	if len(attackers) == 0 {
		return nil
	}
	out := make([]killmail.AttackerDetail, 0, len(attackers))
	for _, a := range attackers {
		detail := killmail.AttackerDetail{
			DamageDone: a.DamageDone,
			FinalBlow:  a.FinalBlow,
		}
		if a.CharacterID != nil {
			v := dto.U64(*a.CharacterID)
			detail.CharacterID = &v
		}
		if a.CorporationID != nil {
			v := dto.U64(*a.CorporationID)
			detail.CorporationID = &v
		}
		if a.AllianceID != nil {
			v := dto.U64(*a.AllianceID)
			detail.AllianceID = &v
		}
		if a.ShipTypeID != nil {
			v := dto.U64(*a.ShipTypeID)
			detail.ShipTypeID = &v
		}
		out = append(out, detail)
	}
	return out
}

func attackerIDs(attackers []firehoseAttacker, pick func(firehoseAttacker) *int64) []int64 {
	var ids []int64
	for _, a := range attackers {
		if id := pick(a); id != nil {
			ids = append(ids, *id)
		}
	}
	return ids
}

func dedupeIDs(ids []int64) []dto.U64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]dto.U64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, dto.U64(id))
	}
	return out
}
