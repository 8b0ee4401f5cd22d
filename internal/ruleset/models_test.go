package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsZeroMinPilots(t *testing.T) {
	r := Ruleset{MinPilots: 0}
	require.Error(t, r.Validate())
}

func TestValidateRejectsOversizedLists(t *testing.T) {
	tooMany := make([]int64, MaxTrackedEntities+1)
	r := Ruleset{MinPilots: 1, TrackedAllianceIDs: tooMany}
	require.Error(t, r.Validate())
}

func TestValidateAcceptsWellFormedRuleset(t *testing.T) {
	r := Ruleset{MinPilots: 2, TrackedAllianceIDs: []int64{1, 2, 3}}
	require.NoError(t, r.Validate())
}

func TestHasTrackedLists(t *testing.T) {
	assert.False(t, Ruleset{}.HasTrackedLists())
	assert.True(t, Ruleset{TrackedAllianceIDs: []int64{1}}.HasTrackedLists())
	assert.True(t, Ruleset{TrackedCorpIDs: []int64{1}}.HasTrackedLists())
}
