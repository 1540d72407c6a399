package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/novaops/nova-control/internal/core"
)

// statsWhere builds the date-window + role scope fragment for tables that
// carry denormalized admin_id/translator_id columns (activity_log). prefix is
// the table alias ("" or "a.").
func statsWhere(f core.StatsFilter, prefix string) (string, []any) {
	where := []string{prefix + "created_at >= $1", prefix + "created_at < $2"}
	args := []any{f.From, f.To}
	if f.AdminID != nil {
		args = append(args, *f.AdminID)
		where = append(where, fmt.Sprintf("%sadmin_id = $%d", prefix, len(args)))
	}
	if f.TranslatorID != nil {
		args = append(args, *f.TranslatorID)
		where = append(where, fmt.Sprintf("%stranslator_id = $%d", prefix, len(args)))
	}
	return strings.Join(where, " AND "), args
}

// profileScope builds an EXISTS fragment for tables that only carry
// profile_id and must be scoped through allowed_profiles.
func profileScope(f core.StatsFilter, alias string, args []any) (string, []any) {
	var conds []string
	if f.AdminID != nil {
		args = append(args, *f.AdminID)
		conds = append(conds, fmt.Sprintf("ap.assigned_admin_id = $%d", len(args)))
	}
	if f.TranslatorID != nil {
		args = append(args, *f.TranslatorID)
		conds = append(conds, fmt.Sprintf("ap.assigned_translator_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	frag := fmt.Sprintf(
		" AND EXISTS (SELECT 1 FROM allowed_profiles ap WHERE ap.profile_id = %s.profile_id AND %s)",
		alias, strings.Join(conds, " AND "),
	)
	return frag, args
}

func (c *DatabaseClient) DashboardTotals(ctx context.Context, f core.StatsFilter) (*core.DashboardTotals, error) {
	var t core.DashboardTotals

	where, args := statsWhere(f, "")
	q := `
		SELECT COUNT(*) FILTER (WHERE action_type = 'message_sent'),
			COUNT(*) FILTER (WHERE used_ai),
			COUNT(*) FILTER (WHERE is_reply)
		FROM activity_log WHERE ` + where
	if err := c.db.QueryRowContext(ctx, q, args...).
		Scan(&t.MessagesSent, &t.AIMessages, &t.Replies); err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	errArgs := []any{f.From, f.To}
	scope, errArgs := profileScope(f, "e", errArgs)
	errQ := `SELECT COUNT(*) FROM error_logs e WHERE e.created_at >= $1 AND e.created_at < $2` + scope
	if err := c.db.QueryRowContext(ctx, errQ, errArgs...).Scan(&t.Errors); err != nil {
		return nil, fmt.Errorf("error totals: %w", err)
	}

	menArgs := []any{f.From, f.To}
	scope, menArgs = profileScope(f, "m", menArgs)
	menQ := `
		SELECT COUNT(DISTINCT m.man_id) FROM incoming_messages m
		WHERE m.received_at >= $1 AND m.received_at < $2 AND m.is_first_from_man` + scope
	if err := c.db.QueryRowContext(ctx, menQ, menArgs...).Scan(&t.UniqueMen); err != nil {
		return nil, fmt.Errorf("unique men: %w", err)
	}

	if t.UniqueMen > 0 {
		t.ReplyRate = float64(t.Replies) / float64(t.UniqueMen)
	}
	return &t, nil
}

func (c *DatabaseClient) DailySeries(ctx context.Context, f core.StatsFilter) ([]core.DailyStat, error) {
	where, args := statsWhere(f, "")
	q := `
		SELECT date_trunc('day', created_at) AS day,
			COUNT(*) FILTER (WHERE action_type = 'message_sent'),
			COUNT(*) FILTER (WHERE is_reply)
		FROM activity_log WHERE ` + where + `
		GROUP BY day ORDER BY day`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	byDay := map[time.Time]*core.DailyStat{}
	var order []time.Time
	for rows.Next() {
		var s core.DailyStat
		if err := rows.Scan(&s.Day, &s.Messages, &s.Replies); err != nil {
			return nil, err
		}
		byDay[s.Day] = &s
		order = append(order, s.Day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	errArgs := []any{f.From, f.To}
	scope, errArgs := profileScope(f, "e", errArgs)
	errQ := `
		SELECT date_trunc('day', e.created_at) AS day, COUNT(*)
		FROM error_logs e
		WHERE e.created_at >= $1 AND e.created_at < $2` + scope + `
		GROUP BY day`
	errRows, err := c.db.QueryContext(ctx, errQ, errArgs...)
	if err != nil {
		return nil, fmt.Errorf("daily errors: %w", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var day time.Time
		var n int64
		if err := errRows.Scan(&day, &n); err != nil {
			return nil, err
		}
		if s, ok := byDay[day]; ok {
			s.Errors = n
		} else {
			byDay[day] = &core.DailyStat{Day: day, Errors: n}
			order = append(order, day)
		}
	}
	if err := errRows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.DailyStat, 0, len(order))
	for _, day := range order {
		out = append(out, *byDay[day])
	}
	return out, nil
}

func (c *DatabaseClient) PingTimes(ctx context.Context, f core.StatsFilter) (map[string][]time.Time, error) {
	args := []any{f.From, f.To}
	q := `
		SELECT p.profile_id, p.pinged_at FROM activity_pings p
		WHERE p.pinged_at >= $1 AND p.pinged_at < $2`
	if f.TranslatorID != nil {
		args = append(args, *f.TranslatorID)
		q += fmt.Sprintf(" AND p.translator_id = $%d", len(args))
	}
	if f.AdminID != nil {
		var scope string
		scope, args = profileScope(core.StatsFilter{AdminID: f.AdminID}, "p", args)
		q += scope
	}
	q += ` ORDER BY p.profile_id, p.pinged_at`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ping times: %w", err)
	}
	defer rows.Close()

	out := map[string][]time.Time{}
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = append(out[id], at)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ProfileStats(ctx context.Context, f core.StatsFilter) ([]core.ProfileStat, error) {
	where, args := statsWhere(f, "a.")
	q := `
		SELECT a.profile_id, COUNT(*), MAX(ap.last_online)
		FROM activity_log a
		LEFT JOIN allowed_profiles ap ON ap.profile_id = a.profile_id
		WHERE ` + where + `
		GROUP BY a.profile_id ORDER BY COUNT(*) DESC`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("profile stats: %w", err)
	}
	defer rows.Close()

	var out []core.ProfileStat
	idx := map[string]int{}
	for rows.Next() {
		var s core.ProfileStat
		if err := rows.Scan(&s.ProfileID, &s.Messages, &s.LastOnline); err != nil {
			return nil, err
		}
		idx[s.ProfileID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	errArgs := []any{f.From, f.To}
	scope, errArgs := profileScope(f, "e", errArgs)
	errQ := `
		SELECT e.profile_id, COUNT(*) FROM error_logs e
		WHERE e.created_at >= $1 AND e.created_at < $2` + scope + `
		GROUP BY e.profile_id`
	errRows, err := c.db.QueryContext(ctx, errQ, errArgs...)
	if err != nil {
		return nil, fmt.Errorf("profile errors: %w", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var id string
		var n int64
		if err := errRows.Scan(&id, &n); err != nil {
			return nil, err
		}
		if i, ok := idx[id]; ok {
			out[i].Errors = n
		}
	}
	return out, errRows.Err()
}
