package query

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"battlescope/internal/auth"
	"battlescope/internal/battle"
	"battlescope/internal/enricher"
	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/pkg/dto"
)

// Deps bundles C7's collaborators: the battle and killmail read stores, the
// ruleset store it's the sole mutator of, C8's enricher for response
// hydration, and the auth validator gating ruleset mutation.
type Deps struct {
	Battles      *battle.Store
	Killmails    *killmail.Store
	RulesetStore *ruleset.Store
	RulesetCache *ruleset.Cache
	Enricher     *enricher.Enricher
	Auth         *auth.Validator
}

// RegisterRoutes registers every C7 operation on the unified API, grounded
// in the teacher's huma.Register operation style.
func RegisterRoutes(api huma.API, basePath string, deps Deps) {
	registerBattleRoutes(api, basePath, deps)
	registerKillmailRoutes(api, basePath, deps)
	registerRulesetRoutes(api, basePath, deps)
	registerDashboardRoutes(api, basePath, deps)
}

type ListBattlesInput struct {
	SecurityType string `query:"security_type" validate:"omitempty,oneof=highsec lowsec nullsec wormhole pochven" doc:"Filter by space type (highsec|lowsec|nullsec|wormhole|pochven)"`
	AllianceID   int64  `query:"alliance_id" doc:"Filter to battles this alliance participated in"`
	CorpID       int64  `query:"corp_id" doc:"Filter to battles this corporation participated in"`
	CharacterID  int64  `query:"character_id" doc:"Filter to battles this character participated in"`
	SystemID     int64  `query:"system_id" doc:"Filter to battles in this solar system"`
	Since        string `query:"since" doc:"Only battles starting at or after this RFC3339 timestamp"`
	Until        string `query:"until" doc:"Only battles starting at or before this RFC3339 timestamp"`
	Cursor       string `query:"cursor" doc:"Opaque pagination cursor from a previous page's next_cursor"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=200" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
}

type ListBattlesOutput struct {
	Body struct {
		Battles    []BattleResponse `json:"battles"`
		NextCursor string           `json:"next_cursor,omitempty"`
	}
}

func registerBattleRoutes(api huma.API, basePath string, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "listBattles",
		Method:        http.MethodGet,
		Path:          basePath + "/battles",
		Summary:       "List battles",
		Description:   "Paginated, filterable list of computed battle clusters.",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *ListBattlesInput) (*ListBattlesOutput, error) {
		filter, err := toListFilter(input)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid filter", err)
		}

		page, err := deps.Battles.ListBattles(ctx, filter)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list battles", err)
		}

		out := &ListBattlesOutput{}
		for _, b := range page.Battles {
			out.Body.Battles = append(out.Body.Battles, toBattleResponse(b))
		}
		if page.NextCursor != nil {
			out.Body.NextCursor = encodeCursor(*page.NextCursor)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getBattle",
		Method:        http.MethodGet,
		Path:          basePath + "/battles/{battle_id}",
		Summary:       "Get a battle",
		Description:   "A single battle joined with its killmails and participants.",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		BattleID string `path:"battle_id" doc:"Battle UUID"`
	}) (*struct{ Body BattleDetailResponse }, error) {
		detail, err := deps.Battles.GetByID(ctx, input.BattleID)
		if err != nil {
			return nil, huma.Error404NotFound("battle not found", err)
		}

		resp := &struct{ Body BattleDetailResponse }{}
		resp.Body.Battle = toBattleResponse(detail.Battle)
		for _, e := range detail.Killmails {
			resp.Body.Killmails = append(resp.Body.Killmails, toKillmailEdgeResponse(e))
		}
		for _, p := range detail.Participants {
			resp.Body.Participants = append(resp.Body.Participants, toParticipantResponse(p))
		}
		hydrateBattleDetail(ctx, deps.Enricher, &resp.Body)
		return resp, nil
	})

	registerEntityStatsRoute(api, basePath, "alliances", deps.Battles.AllianceStats)
	registerEntityStatsRoute(api, basePath, "corporations", deps.Battles.CorpStats)
	registerEntityStatsRoute(api, basePath, "characters", deps.Battles.CharacterStats)
}

// registerEntityStatsRoute registers the per-alliance/per-corp/per-character
// "aggregate statistics" route, identical in shape across all three entity
// kinds bar the backing query.
func registerEntityStatsRoute(api huma.API, basePath, segment string, statsFn func(context.Context, dto.U64) (battle.AggregateStats, error)) {
	huma.Register(api, huma.Operation{
		OperationID:   "get" + segment + "Stats",
		Method:        http.MethodGet,
		Path:          basePath + "/" + segment + "/{id}/stats",
		Summary:       "Get aggregate battle statistics for a " + segment,
		Tags:          []string{"Statistics"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{ Body AggregateStatsResponse }, error) {
		stats, err := statsFn(ctx, dto.U64(uint64(input.ID)))
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute stats", err)
		}
		return &struct{ Body AggregateStatsResponse }{Body: toAggregateStatsResponse(stats)}, nil
	})
}
