package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/novaops/nova-control/internal/models"
)

// UpsertBot records a bot sighting. The verified profile pairing is
// first-write-wins: once set it never changes, even if a later heartbeat
// reports a different profile.
func (c *DatabaseClient) UpsertBot(ctx context.Context, botID, profileID string, extended json.RawMessage, seen time.Time) error {
	const q = `
		INSERT INTO bots (bot_id, verified_profile_id, extended_data, first_seen, last_seen)
		VALUES ($1, NULLIF($2, ''), $3, $4, $4)
		ON CONFLICT (bot_id) DO UPDATE SET
			verified_profile_id = COALESCE(bots.verified_profile_id, NULLIF($2, '')),
			extended_data = COALESCE($3, bots.extended_data),
			last_seen = $4
	`
	var data any
	if len(extended) > 0 {
		data = []byte(extended)
	}
	if _, err := c.db.ExecContext(ctx, q, botID, profileID, data, seen); err != nil {
		return fmt.Errorf("upsert bot: %w", err)
	}
	return nil
}

func (c *DatabaseClient) InsertHeartbeat(ctx context.Context, hb *models.Heartbeat) error {
	const q = `
		INSERT INTO heartbeats (bot_id, account_display_id, status, ip, version, profiles_total, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := c.db.ExecContext(ctx, q,
		hb.BotID, hb.AccountDisplayID, hb.Status, hb.IP, hb.Version,
		hb.ProfilesTotal, hb.Timestamp)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

func (c *DatabaseClient) ListRecentHeartbeats(ctx context.Context, since time.Time) ([]models.Heartbeat, error) {
	const q = `
		SELECT DISTINCT ON (bot_id)
			id, bot_id, account_display_id, status, ip, version, profiles_total, timestamp
		FROM heartbeats
		WHERE timestamp > $1
		ORDER BY bot_id, timestamp DESC
	`
	rows, err := c.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var out []models.Heartbeat
	for rows.Next() {
		var hb models.Heartbeat
		if err := rows.Scan(
			&hb.ID, &hb.BotID, &hb.AccountDisplayID, &hb.Status, &hb.IP,
			&hb.Version, &hb.ProfilesTotal, &hb.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, hb)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteHeartbeatsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM heartbeats WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete heartbeats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
