package enrichment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTripsThroughJSON(t *testing.T) {
	payload := Payload{
		Victim: &ResolvedParty{CharacterName: "Test Pilot", CorporationName: "Test Corp"},
		Attackers: []ResolvedParty{
			{CharacterName: "Attacker One"},
		},
		System: &ResolvedName{ID: 30000142, Name: "Jita"},
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, payload, decoded)
}

func TestStatusTransitionValues(t *testing.T) {
	require.Equal(t, Status("pending"), StatusPending)
	require.Equal(t, Status("processing"), StatusProcessing)
	require.Equal(t, Status("succeeded"), StatusSucceeded)
	require.Equal(t, Status("failed"), StatusFailed)
}
