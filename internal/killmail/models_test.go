package killmail

import (
	"testing"

	"battlescope/pkg/dto"

	"github.com/stretchr/testify/assert"
)

func TestParticipantCountFloorsAtOne(t *testing.T) {
	event := Event{}
	assert.Equal(t, 1, event.ParticipantCount())
}

func TestParticipantCountCountsVictimAndAttackers(t *testing.T) {
	victim := dto.U64(1)
	event := Event{
		VictimCharacterID:    &victim,
		AttackerCharacterIDs: []dto.U64{2, 3, 4},
	}
	assert.Equal(t, 4, event.ParticipantCount())
}

func TestParticipantCountWithoutVictimCharacter(t *testing.T) {
	event := Event{
		AttackerCharacterIDs: []dto.U64{2, 3},
	}
	assert.Equal(t, 2, event.ParticipantCount())
}
