package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/novaops/nova-control/internal/models"
)

const profileColumns = `profile_id, login, password, note, paused, proxy,
	assigned_admin_id, assigned_translator_id, paid_until, is_trial,
	trial_started_at, status, last_online, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ProfileID, &p.Login, &p.Password, &p.Note, &p.Paused, &p.Proxy,
		&p.AssignedAdminID, &p.AssignedTranslatorID, &p.PaidUntil, &p.IsTrial,
		&p.TrialStartedAt, &p.Status, &p.LastOnline, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *DatabaseClient) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM allowed_profiles WHERE profile_id = $1`
	p, err := scanProfile(c.db.QueryRowContext(ctx, q, profileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (c *DatabaseClient) ListProfiles(ctx context.Context, viewer *models.User) ([]models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM allowed_profiles`
	frag, args := BuildRoleFilter(viewer, FilterColumns{
		Admin:      "assigned_admin_id",
		Translator: "assigned_translator_id",
	}, 0)
	if frag != "" {
		q += " WHERE " + frag
	}
	q += ` ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreateProfile inserts a profile. If a deletion backup exists for the same
// profile_id and the request carries no paid_until of its own, the backed-up
// paid_until is restored and a restore row is appended to the ledger.
func (c *DatabaseClient) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return errors.New("nil profile")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO allowed_profiles
			(profile_id, login, password, note, paused, proxy,
			 assigned_admin_id, assigned_translator_id, paid_until, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.ExecContext(ctx, q,
		p.ProfileID, p.Login, p.Password, p.Note, p.Paused, p.Proxy,
		p.AssignedAdminID, p.AssignedTranslatorID, p.PaidUntil, p.Status,
	); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if p.PaidUntil == nil {
		var backup sql.NullTime
		err := tx.QueryRowContext(ctx, `
			SELECT paid_until FROM profile_payment_history
			WHERE profile_id = $1 AND reason = 'deletion_backup'
			ORDER BY created_at DESC LIMIT 1
		`, p.ProfileID).Scan(&backup)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read deletion backup: %w", err)
		}
		if backup.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE allowed_profiles SET paid_until = $2 WHERE profile_id = $1`,
				p.ProfileID, backup.Time); err != nil {
				return fmt.Errorf("restore paid_until: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO profile_payment_history (profile_id, admin_id, paid_until, reason)
				VALUES ($1, $2, $3, 'restore')
			`, p.ProfileID, p.AssignedAdminID, backup.Time); err != nil {
				return fmt.Errorf("append restore row: %w", err)
			}
			p.PaidUntil = &backup.Time
		}
	}

	return tx.Commit()
}

func (c *DatabaseClient) UpdateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return errors.New("nil profile")
	}
	const q = `
		UPDATE allowed_profiles
		SET login = $2, password = $3, note = $4, paused = $5, proxy = $6,
			assigned_admin_id = $7, assigned_translator_id = $8, status = $9
		WHERE profile_id = $1
	`
	res, err := c.db.ExecContext(ctx, q,
		p.ProfileID, p.Login, p.Password, p.Note, p.Paused, p.Proxy,
		p.AssignedAdminID, p.AssignedTranslatorID, p.Status,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile not found: %s", p.ProfileID)
	}
	return nil
}

// DeleteProfile removes a profile, backing up a still-valid paid_until into
// profile_payment_history so re-adding the profile restores it.
func (c *DatabaseClient) DeleteProfile(ctx context.Context, profileID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var paidUntil sql.NullTime
	var adminID sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT paid_until, assigned_admin_id FROM allowed_profiles WHERE profile_id = $1
	`, profileID).Scan(&paidUntil, &adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile not found: %s", profileID)
	}
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	if paidUntil.Valid && paidUntil.Time.After(time.Now()) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profile_payment_history (profile_id, admin_id, paid_until, reason)
			VALUES ($1, $2, $3, 'deletion_backup')
		`, profileID, adminID, paidUntil.Time); err != nil {
			return fmt.Errorf("write deletion backup: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allowed_profiles WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	return tx.Commit()
}

func (c *DatabaseClient) TouchLastOnline(ctx context.Context, profileID string, at time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE allowed_profiles SET last_online = $2 WHERE profile_id = $1`,
		profileID, at)
	return err
}
