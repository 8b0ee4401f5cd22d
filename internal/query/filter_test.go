package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"battlescope/internal/killmail"
)

func TestCursorRoundTrips(t *testing.T) {
	c := killmail.Cursor{StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ID: "1234567890"}

	encoded := encodeCursor(c)
	decoded, err := decodeCursor(encoded)
	require.NoError(t, err)
	require.True(t, c.StartTime.Equal(decoded.StartTime))
	require.Equal(t, c.ID, decoded.ID)
}

func TestDecodeCursorRejectsMalformedInput(t *testing.T) {
	_, err := decodeCursor("not-valid-base64!!!")
	require.Error(t, err)
}

func TestToListFilterParsesEntityAndTimeBounds(t *testing.T) {
	input := &ListBattlesInput{
		SecurityType: "nullsec",
		AllianceID:   99003581,
		Since:        "2026-01-01T00:00:00Z",
		Until:        "2026-01-02T00:00:00Z",
		Limit:        25,
	}

	f, err := toListFilter(input)
	require.NoError(t, err)
	require.NotNil(t, f.SecurityType)
	require.Equal(t, "nullsec", string(*f.SecurityType))
	require.NotNil(t, f.AllianceID)
	require.NotNil(t, f.Since)
	require.NotNil(t, f.Until)
	require.Equal(t, 25, f.Limit)
}

func TestToListFilterRejectsInvalidTimestamp(t *testing.T) {
	input := &ListBattlesInput{Since: "not-a-timestamp"}
	_, err := toListFilter(input)
	require.Error(t, err)
}

func TestToListFilterRejectsUnknownSecurityType(t *testing.T) {
	input := &ListBattlesInput{SecurityType: "deep-space"}
	_, err := toListFilter(input)
	require.Error(t, err)
}

func TestToListFilterRejectsLimitAboveMax(t *testing.T) {
	input := &ListBattlesInput{Limit: 500}
	_, err := toListFilter(input)
	require.Error(t, err)
}
