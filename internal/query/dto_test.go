package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"battlescope/internal/battle"
	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

func TestU64PtrStrNilPointerYieldsNil(t *testing.T) {
	require.Nil(t, u64PtrStr(nil))
}

func TestU64PtrStrFormatsDecimalString(t *testing.T) {
	v := dto.U64(98765432)
	got := u64PtrStr(&v)
	require.NotNil(t, got)
	require.Equal(t, "98765432", *got)
}

func TestToKillmailResponseCarriesOptionalFields(t *testing.T) {
	victim := dto.U64(2112625428)
	event := killmail.Event{
		KillmailID:        dto.U64(1),
		SystemID:          30000142,
		VictimCharacterID: &victim,
	}

	resp := toKillmailResponse(event)
	require.Equal(t, "1", resp.KillmailID)
	require.Equal(t, int64(30000142), resp.SystemID)
	require.NotNil(t, resp.VictimCharacterID)
	require.Equal(t, "2112625428", *resp.VictimCharacterID)
	require.Nil(t, resp.BattleID)
}

func TestToBattleResponseFormatsISKAsDecimalString(t *testing.T) {
	b := battle.Battle{
		ID:                "battle-1",
		SystemID:          30000142,
		TotalKills:        7,
		TotalISKDestroyed: dto.U64(1_500_000_000),
	}

	resp := toBattleResponse(b)
	require.Equal(t, "battle-1", resp.ID)
	require.Equal(t, 7, resp.TotalKills)
	require.Equal(t, "1500000000", resp.TotalISKDestroyed)
}
