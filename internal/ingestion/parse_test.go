package ingestion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEventDedupesAttackers(t *testing.T) {
	raw := firehosePackage{
		KillID: 100,
		Killmail: json.RawMessage(`{
			"killmail_id": 100,
			"killmail_time": "2026-01-01T00:00:00Z",
			"solar_system_id": 30000142,
			"victim": {"character_id": 1, "corporation_id": 10},
			"attackers": [
				{"character_id": 2, "final_blow": true},
				{"character_id": 2},
				{"character_id": 3}
			]
		}`),
	}

	event, err := parseEvent(raw, "test://firehose", time.Now())
	require.NoError(t, err)
	require.Len(t, event.AttackerCharacterIDs, 2)
	require.Equal(t, 3, event.ParticipantCount())
}

func TestParseEventRejectsMissingRequiredFields(t *testing.T) {
	raw := firehosePackage{
		KillID:   1,
		Killmail: json.RawMessage(`{"killmail_id": 0}`),
	}
	_, err := parseEvent(raw, "test://firehose", time.Now())
	require.ErrorIs(t, err, errMissingRequiredFields)
}

func TestParseEventDropsNullAttackerIDs(t *testing.T) {
	raw := firehosePackage{
		KillID: 200,
		Killmail: json.RawMessage(`{
			"killmail_id": 200,
			"killmail_time": "2026-01-01T00:00:00Z",
			"solar_system_id": 30000142,
			"victim": {},
			"attackers": [{"final_blow": true}, {"character_id": 7}]
		}`),
	}
	event, err := parseEvent(raw, "test://firehose", time.Now())
	require.NoError(t, err)
	require.Len(t, event.AttackerCharacterIDs, 1)
	require.Equal(t, int64(7), int64(event.AttackerCharacterIDs[0]))
}
