package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

func eventAt(id, systemID int64, minute int) killmail.Event {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return killmail.Event{
		KillmailID: dto.U64(id),
		SystemID:   systemID,
		OccurredAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestGroupAndWalkSplitsOnGap(t *testing.T) {
	// minutes 0, 5, 25 with window=30, gap_max=15: gap 5->25 is 20 > 15, so
	// the walk closes a cluster of {0,5} and opens a new one-event cluster
	// at 25, which the caller drops for failing min_kills.
	events := []killmail.Event{
		eventAt(1, 30000142, 0),
		eventAt(2, 30000142, 5),
		eventAt(3, 30000142, 25),
	}
	params := DefaultParams()

	clusters := groupAndWalk(events, params)
	require.Len(t, clusters, 2)
	require.Len(t, clusters[0].events, 2)
	require.Len(t, clusters[1].events, 1)
}

func TestGroupAndWalkSplitsOnWindow(t *testing.T) {
	// minutes 0, 10, 20, 35 with window=30: 35-0 = 35 > 30, so a new
	// cluster opens at 35 even though the gap to 20 (15) is within
	// gap_max. The {0,10,20} cluster has span 20 and meets min_kills; the
	// {35} cluster is a singleton.
	events := []killmail.Event{
		eventAt(1, 30000142, 0),
		eventAt(2, 30000142, 10),
		eventAt(3, 30000142, 20),
		eventAt(4, 30000142, 35),
	}
	params := DefaultParams()

	clusters := groupAndWalk(events, params)
	require.Len(t, clusters, 2)
	require.Len(t, clusters[0].events, 3)
	require.Len(t, clusters[1].events, 1)
}

func TestGroupAndWalkGroupsBySystemIndependently(t *testing.T) {
	events := []killmail.Event{
		eventAt(1, 30000142, 0),
		eventAt(2, 30000144, 0),
		eventAt(3, 30000142, 5),
		eventAt(4, 30000144, 5),
	}
	params := DefaultParams()

	clusters := groupAndWalk(events, params)
	require.Len(t, clusters, 2)
	for _, c := range clusters {
		require.Len(t, c.events, 2)
	}
}

func TestRelatedURLIsDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 4, 12, 34, 56, 0, time.UTC)
	a := relatedURL(30000142, ts)
	b := relatedURL(30000142, ts)
	require.Equal(t, a, b)
	require.Contains(t, a, "30000142")
	require.Contains(t, a, "202603041234")
}

func TestTotalISKTreatsNullsAsZero(t *testing.T) {
	isk := dto.U64(5_000_000)
	events := []killmail.Event{
		eventAt(1, 30000142, 0),
		eventAt(2, 30000142, 1),
	}
	events[1].ISKValue = &isk

	c := cluster{systemID: 30000142, events: []clusterEvent{toClusterEvent(events[0]), toClusterEvent(events[1])}}
	require.Equal(t, dto.U64(5_000_000), totalISK(c))
}
