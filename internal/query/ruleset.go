package query

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"battlescope/internal/auth"
	"battlescope/internal/ruleset"
)

const adminRole = "ruleset-admin"

type UpdateRulesetBody struct {
	MinPilots            int      `json:"min_pilots" validate:"min=1" minimum:"1"`
	TrackedAllianceIDs   []int64  `json:"tracked_alliance_ids" validate:"max=250" maxItems:"250"`
	TrackedCorpIDs       []int64  `json:"tracked_corp_ids" validate:"max=250" maxItems:"250"`
	TrackedSystemIDs     []int64  `json:"tracked_system_ids" validate:"max=1000" maxItems:"1000"`
	TrackedSecurityTypes []string `json:"tracked_security_types" validate:"dive,oneof=highsec lowsec nullsec wormhole pochven"`
	IgnoreUnlisted       bool     `json:"ignore_unlisted"`
}

type UpdateRulesetInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateRulesetBody
}

// registerRulesetRoutes registers the ruleset GET (public) and PUT
// (authorization-gated) routes. Gating is done inside the handler rather
// than chi middleware because PUT is the only authenticated route in an
// otherwise fully public API, and huma's typed input already carries
// the bearer header for validation.
func registerRulesetRoutes(api huma.API, basePath string, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "getRuleset",
		Method:        http.MethodGet,
		Path:          basePath + "/ruleset",
		Summary:       "Get the active admission ruleset",
		Tags:          []string{"Ruleset"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*struct{ Body RulesetResponse }, error) {
		r, err := deps.RulesetCache.Get(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load ruleset", err)
		}
		return &struct{ Body RulesetResponse }{Body: toRulesetResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "updateRuleset",
		Method:        http.MethodPut,
		Path:          basePath + "/ruleset",
		Summary:       "Update the active admission ruleset",
		Description:   "Requires a bearer token carrying the ruleset-admin role.",
		Tags:          []string{"Ruleset"},
		DefaultStatus: http.StatusOK,
		Security:      []map[string][]string{{"bearerAuth": {}}},
	}, func(ctx context.Context, input *UpdateRulesetInput) (*struct{ Body RulesetResponse }, error) {
		user, err := deps.Auth.ValidateToken(auth.ExtractBearer(input.Authorization))
		if err != nil {
			return nil, huma.Error401Unauthorized("authentication required", err)
		}
		if !user.HasRole(adminRole) {
			return nil, huma.Error403Forbidden("ruleset-admin role required")
		}
		if err := validate.Struct(input.Body); err != nil {
			return nil, huma.Error400BadRequest("invalid ruleset", err)
		}

		securityTypes := make([]ruleset.SecurityType, len(input.Body.TrackedSecurityTypes))
		for i, t := range input.Body.TrackedSecurityTypes {
			securityTypes[i] = ruleset.SecurityType(t)
		}
		r := ruleset.Ruleset{
			MinPilots:            uint16(input.Body.MinPilots),
			TrackedAllianceIDs:   input.Body.TrackedAllianceIDs,
			TrackedCorpIDs:       input.Body.TrackedCorpIDs,
			TrackedSystemIDs:     input.Body.TrackedSystemIDs,
			TrackedSecurityTypes: securityTypes,
			IgnoreUnlisted:       input.Body.IgnoreUnlisted,
			UpdatedBy:            user.Subject,
		}
		if err := r.Validate(); err != nil {
			return nil, huma.Error400BadRequest("invalid ruleset", err)
		}

		updated, err := deps.RulesetStore.Update(ctx, r)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to update ruleset", err)
		}

		if err := deps.RulesetCache.Publish(ctx); err != nil {
			slog.Error("ruleset: invalidation publish failed", "error", err)
		}
		deps.RulesetCache.Invalidate()

		return &struct{ Body RulesetResponse }{Body: toRulesetResponse(updated)}, nil
	})
}
