package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/util"
)

// DashboardService reads the admin overview counters
type DashboardService struct {
	store  StatsStore
	runner *Runner
}

func NewDashboardService(store StatsStore, runner *Runner) *DashboardService {
	return &DashboardService{store: store, runner: runner}
}

// Snapshot returns revenue and entity counts read at one point in time
func (s *DashboardService) Snapshot(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Snapshot")
	defer span.End()

	var stats *models.DashboardStats
	err := s.runner.Do(ctx, "dashboard_stats", func(ctx context.Context) error {
		var err error
		stats, err = s.store.DashboardStats(ctx)
		return err
	})
	return stats, err
}
