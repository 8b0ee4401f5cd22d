package battle

import (
	"fmt"

	"github.com/google/uuid"

	"battlescope/pkg/dto"
	"battlescope/pkg/sde"
)

// graph is the fully-materialized set of rows one closed cluster produces,
// ready for a single idempotent transactional write.
type graph struct {
	Battle       Battle
	Edges        []KillmailEdge
	Participants []Participant
	ShipHistory  []ShipHistoryEntry
	KillmailIDs  []uint64
}

// buildGraph implements step 4's "else" branch: allocate a Battle UUID,
// compute its aggregate fields, and derive the participant/ship-history rows
// from the cluster's events. Participants are deduped on (character,
// ship_type) per spec.md §3's BattleParticipant uniqueness; ship history is
// one row per (character, killmail) regardless of repeated ship types.
func buildGraph(c cluster, classifier *sde.Classifier) graph {
	battleID := uuid.NewString()
	first, last := c.first(), c.last()

	g := graph{
		Battle: Battle{
			ID:                battleID,
			SystemID:          c.systemID,
			SecurityType:      classifier.ClassifySystem(c.systemID),
			StartTime:         first.OccurredAt,
			EndTime:           last.OccurredAt,
			TotalKills:        len(c.events),
			TotalISKDestroyed: totalISK(c),
			RelatedURL:        relatedURL(c.systemID, first.OccurredAt),
		},
	}

	participants := make(map[string]Participant)

	for _, ev := range c.events {
		g.KillmailIDs = append(g.KillmailIDs, uint64(ev.KillmailID))
		g.Edges = append(g.Edges, KillmailEdge{
			BattleID:            battleID,
			KillmailID:          ev.KillmailID,
			VictimAllianceID:    ev.VictimAllianceID,
			VictimCorpID:        ev.VictimCorpID,
			AttackerAllianceIDs: ev.AttackerAllianceIDs,
			ISKValue:            ev.ISKValue,
		})

		// killmail_isk_value is a property of the killmail, not of which side a
		// row belongs to; every ship-history row for this event carries it.
		// The firehose doesn't break hull value out from total destroyed value,
		// so the victim's own ship value is the same figure.
		killISK := uint64(0)
		if ev.ISKValue != nil {
			killISK = uint64(*ev.ISKValue)
		}

		if ev.VictimCharacterID != nil && ev.VictimShipTypeID != nil {
			key := participantKey(*ev.VictimCharacterID, *ev.VictimShipTypeID)
			participants[key] = Participant{
				BattleID:      battleID,
				CharacterID:   *ev.VictimCharacterID,
				ShipTypeID:    *ev.VictimShipTypeID,
				AllianceID:    ev.VictimAllianceID,
				CorporationID: ev.VictimCorpID,
				IsVictim:      true,
			}

			g.ShipHistory = append(g.ShipHistory, ShipHistoryEntry{
				CharacterID:   *ev.VictimCharacterID,
				KillmailID:    ev.KillmailID,
				ShipTypeID:    *ev.VictimShipTypeID,
				AllianceID:    ev.VictimAllianceID,
				CorporationID: ev.VictimCorpID,
				SystemID:      ev.SystemID,
				IsLoss:        true,
				ShipISKValue:  dtoU64(killISK),
				KillmailISK:   dtoU64(killISK),
				OccurredAt:    ev.OccurredAt,
			})
		}

		for _, a := range ev.Attackers {
			if a.CharacterID == nil || a.ShipTypeID == nil {
				continue
			}
			key := participantKey(*a.CharacterID, *a.ShipTypeID)
			if _, exists := participants[key]; !exists {
				participants[key] = Participant{
					BattleID:      battleID,
					CharacterID:   *a.CharacterID,
					ShipTypeID:    *a.ShipTypeID,
					AllianceID:    a.AllianceID,
					CorporationID: a.CorporationID,
					IsVictim:      false,
				}
			}

			g.ShipHistory = append(g.ShipHistory, ShipHistoryEntry{
				CharacterID:   *a.CharacterID,
				KillmailID:    ev.KillmailID,
				ShipTypeID:    *a.ShipTypeID,
				AllianceID:    a.AllianceID,
				CorporationID: a.CorporationID,
				SystemID:      ev.SystemID,
				IsLoss:        false,
				KillmailISK:   dtoU64(killISK),
				OccurredAt:    ev.OccurredAt,
			})
		}
	}

	for _, p := range participants {
		g.Participants = append(g.Participants, p)
	}
	return g
}

func participantKey(characterID, shipTypeID dto.U64) string {
	return fmt.Sprintf("%d:%d", uint64(characterID), uint64(shipTypeID))
}

func dtoU64(v uint64) dto.U64 { return dto.U64(v) }
