package query

import (
	"context"
	"strconv"

	"battlescope/internal/enricher"
	"battlescope/pkg/dto"
)

// hydrateBattleDetail fills in the human-readable name fields a
// BattleDetailResponse carries alongside its raw IDs, via one C8 call
// coalescing every ID on the page by category.
func hydrateBattleDetail(ctx context.Context, e *enricher.Enricher, detail *BattleDetailResponse) {
	if e == nil {
		return
	}

	req := enricher.Request{SystemIDs: []dto.U64{dto.U64(uint64(detail.Battle.SystemID))}}
	for _, p := range detail.Participants {
		if id, err := parseU64(p.CharacterID); err == nil {
			req.CharacterIDs = append(req.CharacterIDs, id)
		}
		if id, err := parseU64(p.ShipTypeID); err == nil {
			req.ShipTypeIDs = append(req.ShipTypeIDs, id)
		}
	}

	names := e.Resolve(ctx, req)

	if name, ok := names[strconv.FormatInt(detail.Battle.SystemID, 10)]; ok {
		detail.Battle.SystemName = name.Name
	}
	for i, p := range detail.Participants {
		if name, ok := names[p.CharacterID]; ok {
			detail.Participants[i].CharacterName = name.Name
		}
		if name, ok := names[p.ShipTypeID]; ok {
			detail.Participants[i].ShipTypeName = name.Name
		}
	}
}

func parseU64(s string) (dto.U64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return dto.U64(v), nil
}
