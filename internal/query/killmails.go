package query

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
)

type ListRecentKillmailsInput struct {
	CharacterID int64  `query:"character_id"`
	CorpID      int64  `query:"corp_id"`
	AllianceID  int64  `query:"alliance_id"`
	SystemID    int64  `query:"system_id"`
	Since       string `query:"since" doc:"Only killmails at or after this RFC3339 timestamp"`
	Cursor      string `query:"cursor"`
	Limit       int    `query:"limit" minimum:"1" maximum:"500" default:"50"`
}

type ListRecentKillmailsOutput struct {
	Body struct {
		Killmails  []KillmailResponse `json:"killmails"`
		NextCursor string             `json:"next_cursor,omitempty"`
	}
}

func registerKillmailRoutes(api huma.API, basePath string, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "listRecentKillmails",
		Method:        http.MethodGet,
		Path:          basePath + "/killmails/recent",
		Summary:       "List recent killmails",
		Description:   "Paginated, filterable list of admitted killmail events.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *ListRecentKillmailsInput) (*ListRecentKillmailsOutput, error) {
		f, err := toRecentFilter(input)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid filter", err)
		}

		page, err := deps.Killmails.ListRecent(ctx, f)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list killmails", err)
		}

		out := &ListRecentKillmailsOutput{}
		for _, e := range page.Events {
			out.Body.Killmails = append(out.Body.Killmails, toKillmailResponse(e))
		}
		if page.NextCursor != nil {
			out.Body.NextCursor = encodeCursor(*page.NextCursor)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getKillmail",
		Method:        http.MethodGet,
		Path:          basePath + "/killmails/{killmail_id}",
		Summary:       "Get a killmail by ID",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		KillmailID int64 `path:"killmail_id"`
	}) (*struct{ Body KillmailResponse }, error) {
		event, err := deps.Killmails.GetByID(ctx, dto.U64(uint64(input.KillmailID)))
		if err != nil {
			return nil, huma.Error404NotFound("killmail not found", err)
		}
		return &struct{ Body KillmailResponse }{Body: toKillmailResponse(event)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getCharacterShipHistory",
		Method:        http.MethodGet,
		Path:          basePath + "/characters/{character_id}/ship-history",
		Summary:       "Get a character's ship history",
		Description:   "Every hull a character is on record as having flown, most recent first.",
		Tags:          []string{"Ship History"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		CharacterID int64 `path:"character_id"`
		Limit       int   `query:"limit" minimum:"1" maximum:"500" default:"100"`
	}) (*struct {
		Body struct {
			History []ShipHistoryEntryResponse `json:"history"`
		}
	}, error) {
		history, err := deps.Battles.ShipHistoryByCharacter(ctx, dto.U64(uint64(input.CharacterID)), input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load ship history", err)
		}
		resp := &struct {
			Body struct {
				History []ShipHistoryEntryResponse `json:"history"`
			}
		}{}
		for _, h := range history {
			resp.Body.History = append(resp.Body.History, toShipHistoryResponse(h))
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getShipTypePilots",
		Method:        http.MethodGet,
		Path:          basePath + "/ships/{ship_type_id}/pilots",
		Summary:       "Get pilots recorded flying a ship type",
		Tags:          []string{"Ship History"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		ShipTypeID int64 `path:"ship_type_id"`
		Limit      int   `query:"limit" minimum:"1" maximum:"500" default:"100"`
	}) (*struct {
		Body struct {
			Pilots []ShipHistoryEntryResponse `json:"pilots"`
		}
	}, error) {
		pilots, err := deps.Battles.PilotsByShipType(ctx, dto.U64(uint64(input.ShipTypeID)), input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load pilots", err)
		}
		resp := &struct {
			Body struct {
				Pilots []ShipHistoryEntryResponse `json:"pilots"`
			}
		}{}
		for _, p := range pilots {
			resp.Body.Pilots = append(resp.Body.Pilots, toShipHistoryResponse(p))
		}
		return resp, nil
	})
}

func toRecentFilter(input *ListRecentKillmailsInput) (killmail.RecentFilter, error) {
	f := killmail.RecentFilter{Limit: input.Limit}
	if input.CharacterID != 0 {
		v := dto.U64(uint64(input.CharacterID))
		f.CharacterID = &v
	}
	if input.CorpID != 0 {
		v := dto.U64(uint64(input.CorpID))
		f.CorpID = &v
	}
	if input.AllianceID != 0 {
		v := dto.U64(uint64(input.AllianceID))
		f.AllianceID = &v
	}
	if input.SystemID != 0 {
		f.SystemID = &input.SystemID
	}
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return killmail.RecentFilter{}, fmt.Errorf("invalid since timestamp: %w", err)
		}
		f.Since = &t
	}
	if input.Cursor != "" {
		c, err := decodeCursor(input.Cursor)
		if err != nil {
			return killmail.RecentFilter{}, fmt.Errorf("invalid cursor: %w", err)
		}
		f.Cursor = &c
	}
	return f, nil
}
