package ingestion

import (
	"testing"

	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/pkg/dto"
	"battlescope/pkg/sde"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateFilterDropsBelowMinPilots(t *testing.T) {
	event := killmail.Event{}
	r := ruleset.Ruleset{MinPilots: 3}
	assert.Equal(t, drop, evaluateFilter(event, r, sde.NewClassifier()))
}

func TestEvaluateFilterAdmitsWhenNoListsConfigured(t *testing.T) {
	event := killmail.Event{AttackerCharacterIDs: []dto.U64{1, 2}}
	r := ruleset.Ruleset{MinPilots: 1}
	assert.Equal(t, admit, evaluateFilter(event, r, sde.NewClassifier()))
}

func TestEvaluateFilterIgnoreUnlistedDropsUntracked(t *testing.T) {
	event := killmail.Event{AttackerCharacterIDs: []dto.U64{1}}
	victimAlliance := dto.U64(999)
	event.VictimAllianceID = &victimAlliance

	r := ruleset.Ruleset{
		MinPilots:          1,
		IgnoreUnlisted:     true,
		TrackedAllianceIDs: []int64{1, 2, 3},
	}
	assert.Equal(t, drop, evaluateFilter(event, r, sde.NewClassifier()))
}

func TestEvaluateFilterIgnoreUnlistedAdmitsTrackedAlliance(t *testing.T) {
	event := killmail.Event{AttackerCharacterIDs: []dto.U64{1}}
	victimAlliance := dto.U64(2)
	event.VictimAllianceID = &victimAlliance

	r := ruleset.Ruleset{
		MinPilots:          1,
		IgnoreUnlisted:     true,
		TrackedAllianceIDs: []int64{1, 2, 3},
	}
	assert.Equal(t, admit, evaluateFilter(event, r, sde.NewClassifier()))
}

func TestEvaluateFilterFallsThroughWhenIgnoreUnlistedHasNoLists(t *testing.T) {
	event := killmail.Event{AttackerCharacterIDs: []dto.U64{1, 2}}
	r := ruleset.Ruleset{MinPilots: 1, IgnoreUnlisted: true}
	assert.Equal(t, admit, evaluateFilter(event, r, sde.NewClassifier()))
}

func TestEvaluateFilterAdmitsUnlistedWhenIgnoreUnlistedFalse(t *testing.T) {
	event := killmail.Event{AttackerCharacterIDs: []dto.U64{1}}
	victimAlliance := dto.U64(999)
	event.VictimAllianceID = &victimAlliance

	r := ruleset.Ruleset{
		MinPilots:          1,
		IgnoreUnlisted:     false,
		TrackedAllianceIDs: []int64{1, 2, 3},
	}
	assert.Equal(t, admit, evaluateFilter(event, r, sde.NewClassifier()))
}
