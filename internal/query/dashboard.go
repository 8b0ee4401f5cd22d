package query

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerDashboardRoutes(api huma.API, basePath string, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "getDashboardSummary",
		Method:        http.MethodGet,
		Path:          basePath + "/dashboard",
		Summary:       "Get the dashboard summary",
		Description:   "A rollup of the last 24 hours of battle activity.",
		Tags:          []string{"Dashboard"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*struct{ Body SummaryResponse }, error) {
		summary, err := deps.Battles.DashboardSummary(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute dashboard summary", err)
		}
		return &struct{ Body SummaryResponse }{Body: toSummaryResponse(summary)}, nil
	})
}
