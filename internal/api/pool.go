package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pdfnode/internal/api/models"
	"github.com/smazurov/pdfnode/internal/metrics"
)

// registerPoolRoutes registers the pool status route.
func (s *Server) registerPoolRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pool",
		Method:      http.MethodGet,
		Path:        "/api/pool",
		Summary:     "Pool Status",
		Description: "Get the worker pool snapshot and conversion totals",
		Tags:        []string{"pool"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.PoolResponse, error) {
		if s.pool == nil {
			return nil, huma.Error500InternalServerError("pool not configured")
		}

		stats := s.pool.Stats()
		totals := metrics.GetConversionTotals()
		return &models.PoolResponse{
			Body: models.PoolData{
				Idle:              stats.Idle,
				Running:           stats.Running,
				MaxIdle:           stats.MaxIdle,
				MonitorIntervalMs: stats.MonitorInterval.Milliseconds(),
				Closed:            stats.Closed,
				Conversions: models.ConversionTotals{
					Succeeded:  totals.Succeeded,
					Failed:     totals.Failed,
					BytesTotal: totals.BytesTotal,
				},
			},
		}, nil
	})
}
