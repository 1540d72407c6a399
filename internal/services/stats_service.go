package services

import (
	"context"
	"time"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

type StatsService struct {
	store core.StatsStore
}

func NewStatsService(store core.StatsStore) *StatsService {
	return &StatsService{store: store}
}

// DashboardResponse is the payload of GET /api/dashboard.
type DashboardResponse struct {
	Totals          *core.DashboardTotals `json:"totals"`
	Daily           []core.DailyStat      `json:"daily"`
	WorkTimeMinutes int64                 `json:"work_time_minutes"`
}

// ResolveStatsFilter narrows the requested filters to what the viewer's role
// allows: directors may filter freely, admins are pinned to themselves (and
// may narrow to one of their translators), translators only ever see their
// own rows.
func ResolveStatsFilter(viewer *models.User, from, to time.Time, filterAdmin, filterTranslator *int64) core.StatsFilter {
	f := core.StatsFilter{From: from, To: to}
	switch viewer.Role {
	case models.RoleDirector:
		f.AdminID = filterAdmin
		f.TranslatorID = filterTranslator
	case models.RoleAdmin:
		f.AdminID = &viewer.ID
		f.TranslatorID = filterTranslator
	default:
		f.TranslatorID = &viewer.ID
	}
	return f
}

func (s *StatsService) Dashboard(ctx context.Context, f core.StatsFilter) (*DashboardResponse, error) {
	totals, err := s.store.DashboardTotals(ctx, f)
	if err != nil {
		return nil, err
	}
	daily, err := s.store.DailySeries(ctx, f)
	if err != nil {
		return nil, err
	}
	pings, err := s.store.PingTimes(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DashboardResponse{
		Totals:          totals,
		Daily:           daily,
		WorkTimeMinutes: EstimateWorkMinutes(pings),
	}, nil
}

// WorkTimeByProfile returns estimated minutes per profile for the window.
func (s *StatsService) WorkTimeByProfile(ctx context.Context, f core.StatsFilter) (map[string]int64, error) {
	pings, err := s.store.PingTimes(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(pings))
	for id, ts := range pings {
		out[id] = int64(EstimateWorkTime(ts).Round(time.Minute) / time.Minute)
	}
	return out, nil
}

func (s *StatsService) ProfileStats(ctx context.Context, f core.StatsFilter) ([]core.ProfileStat, error) {
	return s.store.ProfileStats(ctx, f)
}
