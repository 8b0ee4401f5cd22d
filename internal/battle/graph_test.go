package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"battlescope/pkg/dto"
	"battlescope/pkg/sde"
)

func TestBuildGraphDedupsParticipantsByCharacterAndShipType(t *testing.T) {
	char1, ship1, corp1 := dto.U64(100), dto.U64(600), dto.U64(1000)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := cluster{
		systemID: 30000142,
		events: []clusterEvent{
			{
				KillmailID: dto.U64(1),
				SystemID:   30000142,
				OccurredAt: base,
				Attackers: []clusterAttacker{
					{CharacterID: &char1, ShipTypeID: &ship1, CorporationID: &corp1},
				},
			},
			{
				KillmailID: dto.U64(2),
				SystemID:   30000142,
				OccurredAt: base.Add(time.Minute),
				Attackers: []clusterAttacker{
					{CharacterID: &char1, ShipTypeID: &ship1, CorporationID: &corp1},
				},
			},
		},
	}

	g := buildGraph(c, sde.NewClassifier())
	require.Len(t, g.Participants, 1)
	require.Len(t, g.ShipHistory, 2, "one ship-history row per (character, killmail), even with a repeated ship type")
}

func TestBuildGraphMarksVictimEntryOnly(t *testing.T) {
	victim, attacker, ship := dto.U64(1), dto.U64(2), dto.U64(600)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := cluster{
		systemID: 30000142,
		events: []clusterEvent{
			{
				KillmailID:        dto.U64(1),
				SystemID:          30000142,
				OccurredAt:        base,
				VictimCharacterID: &victim,
				VictimShipTypeID:  &ship,
				Attackers: []clusterAttacker{
					{CharacterID: &attacker, ShipTypeID: &ship},
				},
			},
		},
	}

	g := buildGraph(c, sde.NewClassifier())
	require.Len(t, g.Participants, 2)
	for _, p := range g.Participants {
		if p.CharacterID == victim {
			require.True(t, p.IsVictim)
		} else {
			require.False(t, p.IsVictim)
		}
	}
}

func TestBuildGraphSetsKillmailISKOnAttackerShipHistoryRows(t *testing.T) {
	victim, attacker, ship := dto.U64(1), dto.U64(2), dto.U64(600)
	isk := dto.U64(5_000_000)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := cluster{
		systemID: 30000142,
		events: []clusterEvent{
			{
				KillmailID:        dto.U64(1),
				SystemID:          30000142,
				OccurredAt:        base,
				ISKValue:          &isk,
				VictimCharacterID: &victim,
				VictimShipTypeID:  &ship,
				Attackers: []clusterAttacker{
					{CharacterID: &attacker, ShipTypeID: &ship},
				},
			},
		},
	}

	g := buildGraph(c, sde.NewClassifier())
	for _, row := range g.ShipHistory {
		require.Equal(t, isk, row.KillmailISK, "every ship-history row for a kill reports that kill's isk value")
		if row.CharacterID == attacker {
			require.Equal(t, dto.U64(0), row.ShipISKValue, "ship value stays victim-only")
		}
	}
}

func TestBuildGraphComputesAggregates(t *testing.T) {
	isk1, isk2 := dto.U64(1_000_000), dto.U64(2_000_000)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := cluster{
		systemID: 30000142,
		events: []clusterEvent{
			{KillmailID: dto.U64(1), SystemID: 30000142, OccurredAt: base, ISKValue: &isk1},
			{KillmailID: dto.U64(2), SystemID: 30000142, OccurredAt: base.Add(10 * time.Minute), ISKValue: &isk2},
		},
	}

	g := buildGraph(c, sde.NewClassifier())
	require.Equal(t, 2, g.Battle.TotalKills)
	require.Equal(t, dto.U64(3_000_000), g.Battle.TotalISKDestroyed)
	require.Equal(t, base, g.Battle.StartTime)
	require.Equal(t, base.Add(10*time.Minute), g.Battle.EndTime)
	require.Len(t, g.KillmailIDs, 2)
}
