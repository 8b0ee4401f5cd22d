package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateRulesetBodyValidation(t *testing.T) {
	valid := UpdateRulesetBody{MinPilots: 1, TrackedSecurityTypes: []string{"nullsec", "wormhole"}}
	require.NoError(t, validate.Struct(valid))

	zeroMinPilots := UpdateRulesetBody{MinPilots: 0}
	require.Error(t, validate.Struct(zeroMinPilots))

	unknownSecurityType := UpdateRulesetBody{MinPilots: 1, TrackedSecurityTypes: []string{"deep-space"}}
	require.Error(t, validate.Struct(unknownSecurityType))

	tooManyAlliances := UpdateRulesetBody{MinPilots: 1, TrackedAllianceIDs: make([]int64, 251)}
	require.Error(t, validate.Struct(tooManyAlliances))
}
