package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToRecentFilterParsesOptionalFields(t *testing.T) {
	input := &ListRecentKillmailsInput{
		CharacterID: 2112625428,
		SystemID:    30000142,
		Since:       "2026-01-01T00:00:00Z",
		Limit:       100,
	}

	f, err := toRecentFilter(input)
	require.NoError(t, err)
	require.NotNil(t, f.CharacterID)
	require.Equal(t, uint64(2112625428), uint64(*f.CharacterID))
	require.NotNil(t, f.SystemID)
	require.Equal(t, int64(30000142), *f.SystemID)
	require.NotNil(t, f.Since)
	require.Equal(t, 100, f.Limit)
}

func TestToRecentFilterLeavesUnsetFieldsNil(t *testing.T) {
	f, err := toRecentFilter(&ListRecentKillmailsInput{})
	require.NoError(t, err)
	require.Nil(t, f.CharacterID)
	require.Nil(t, f.CorpID)
	require.Nil(t, f.AllianceID)
	require.Nil(t, f.SystemID)
	require.Nil(t, f.Since)
	require.Nil(t, f.Cursor)
}

func TestToRecentFilterRejectsInvalidSinceTimestamp(t *testing.T) {
	_, err := toRecentFilter(&ListRecentKillmailsInput{Since: "garbage"})
	require.Error(t, err)
}

func TestToRecentFilterRejectsInvalidCursor(t *testing.T) {
	_, err := toRecentFilter(&ListRecentKillmailsInput{Cursor: "not-valid-base64!!!"})
	require.Error(t, err)
}
