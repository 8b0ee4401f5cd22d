package battle

import (
	"sort"
	"strconv"
	"time"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

// toClusterEvent narrows a killmail.Event down to the fields the clustering
// walk and battle-graph builder need.
func toClusterEvent(e killmail.Event) clusterEvent {
	ce := clusterEvent{
		KillmailID:          e.KillmailID,
		SystemID:            e.SystemID,
		OccurredAt:          e.OccurredAt,
		VictimCharacterID:   e.VictimCharacterID,
		VictimCorpID:        e.VictimCorpID,
		VictimAllianceID:    e.VictimAllianceID,
		VictimShipTypeID:    e.VictimShipTypeID,
		AttackerAllianceIDs: e.AttackerAllianceIDs,
		ISKValue:            e.ISKValue,
	}
	ce.Attackers = make([]clusterAttacker, len(e.Attackers))
	for i, a := range e.Attackers {
		ce.Attackers[i] = clusterAttacker{
			CharacterID:   a.CharacterID,
			CorporationID: a.CorporationID,
			AllianceID:    a.AllianceID,
			ShipTypeID:    a.ShipTypeID,
		}
	}
	return ce
}

// groupAndWalk implements the per-tick algorithm's steps 2-3: group the
// batch by system_id, then within each system group walk events in time
// order opening a new cluster whenever the gap to the previous event
// exceeds gap_max_minutes or the span since the cluster's first event
// exceeds window_minutes. The input is assumed sorted by
// (occurred_at ASC, killmail_id ASC) already (FetchUnprocessed's contract);
// this function re-sorts defensively so it is correct standalone too.
func groupAndWalk(events []killmail.Event, p Params) []cluster {
	bySystem := make(map[int64][]clusterEvent)
	for _, e := range events {
		bySystem[e.SystemID] = append(bySystem[e.SystemID], toClusterEvent(e))
	}

	systemIDs := make([]int64, 0, len(bySystem))
	for sysID := range bySystem {
		systemIDs = append(systemIDs, sysID)
	}
	sort.Slice(systemIDs, func(i, j int) bool { return systemIDs[i] < systemIDs[j] })

	gapMax := time.Duration(p.GapMaxMinutes) * time.Minute
	window := time.Duration(p.WindowMinutes) * time.Minute

	var clusters []cluster
	for _, sysID := range systemIDs {
		group := bySystem[sysID]
		sort.Slice(group, func(i, j int) bool {
			if group[i].OccurredAt.Equal(group[j].OccurredAt) {
				return group[i].KillmailID < group[j].KillmailID
			}
			return group[i].OccurredAt.Before(group[j].OccurredAt)
		})

		var current *cluster
		for _, ev := range group {
			if current == nil {
				current = &cluster{systemID: sysID, events: []clusterEvent{ev}}
				continue
			}
			last := current.last()
			first := current.first()
			if ev.OccurredAt.Sub(last.OccurredAt) > gapMax || ev.OccurredAt.Sub(first.OccurredAt) > window {
				clusters = append(clusters, *current)
				current = &cluster{systemID: sysID, events: []clusterEvent{ev}}
				continue
			}
			current.events = append(current.events, ev)
		}
		if current != nil {
			clusters = append(clusters, *current)
		}
	}
	return clusters
}

// relatedURL composes the deterministic per-battle reference URL per the
// external site's "system + truncated minute timestamp" convention.
func relatedURL(systemID int64, startTime time.Time) string {
	return "https://zkillboard.com/related/" +
		strconv.FormatInt(systemID, 10) + "/" + startTime.UTC().Format("200601021504") + "/"
}

// totalISK sums a cluster's killmail ISK values, treating nulls as 0.
func totalISK(c cluster) dto.U64 {
	var total uint64
	for _, ev := range c.events {
		if ev.ISKValue != nil {
			total += uint64(*ev.ISKValue)
		}
	}
	return dto.U64(total)
}
