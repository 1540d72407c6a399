package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
	"github.com/novaops/nova-control/internal/services"
)

type StatsHandler struct {
	stats *services.StatsService
	users core.UserStore
}

func NewStatsHandler(stats *services.StatsService, users core.UserStore) *StatsHandler {
	return &StatsHandler{stats: stats, users: users}
}

// Dashboard returns totals, the daily series and estimated work time for the
// requested window (default: last 7 days), scoped by the caller's role.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	f, err := h.filterFromQuery(r, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.stats.Dashboard(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dashboard failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dashboard": resp})
}

// WorkTime returns estimated minutes of operator activity per profile.
func (h *StatsHandler) WorkTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	f, err := h.filterFromQuery(r, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	minutes, err := h.stats.WorkTimeByProfile(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "worktime failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "minutes": minutes})
}

// ProfileStats returns the per-profile message/error breakdown.
func (h *StatsHandler) ProfileStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	f, err := h.filterFromQuery(r, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.stats.ProfileStats(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile stats failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profiles": stats})
}

func (h *StatsHandler) filterFromQuery(r *http.Request, viewer *models.User) (core.StatsFilter, error) {
	q := r.URL.Query()

	to := time.Now()
	from := to.AddDate(0, 0, -7)
	var err error
	if v := q.Get("dateFrom"); v != "" {
		if from, err = parseDay(v); err != nil {
			return core.StatsFilter{}, err
		}
	}
	if v := q.Get("dateTo"); v != "" {
		if to, err = parseDay(v); err != nil {
			return core.StatsFilter{}, err
		}
		// inclusive end of day
		to = to.AddDate(0, 0, 1)
	}

	var filterAdmin, filterTranslator *int64
	if v := q.Get("filterAdminId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return core.StatsFilter{}, err
		}
		filterAdmin = &id
	}
	if v := q.Get("filterTranslatorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return core.StatsFilter{}, err
		}
		filterTranslator = &id
	}

	return services.ResolveStatsFilter(viewer, from, to, filterAdmin, filterTranslator), nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
