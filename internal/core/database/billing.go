package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

type billingTx struct {
	tx *sql.Tx
}

// InTx runs fn inside one transaction; any error rolls everything back.
func (c *DatabaseClient) InTx(ctx context.Context, fn func(core.BillingTx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&billingTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UserForUpdate locks the user row for the duration of the transaction so
// concurrent payments against the same balance serialize.
func (t *billingTx) UserForUpdate(ctx context.Context, userID int64) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(t.tx.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (t *billingTx) AdjustBalance(ctx context.Context, userID int64, delta float64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1`, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

func (t *billingTx) InsertBillingEntry(ctx context.Context, e *models.BillingEntry) error {
	if e == nil {
		return errors.New("nil billing entry")
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO billing_history (user_id, amount, kind, comment, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, e.UserID, e.Amount, e.Kind, e.Comment, e.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert billing entry: %w", err)
	}
	return nil
}

// ExtendProfilePaid computes the extension in SQL so a concurrent payment
// that committed after our snapshot read still stacks instead of being
// overwritten by a stale base.
func (t *billingTx) ExtendProfilePaid(ctx context.Context, profileID string, months int) (time.Time, error) {
	var until time.Time
	err := t.tx.QueryRowContext(ctx, `
		UPDATE allowed_profiles
		SET paid_until = GREATEST(COALESCE(paid_until, now()), now()) + make_interval(days => 30 * $2)
		WHERE profile_id = $1
		RETURNING paid_until
	`, profileID, months).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("profile not found: %s", profileID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("extend paid_until: %w", err)
	}
	return until, nil
}

func (t *billingTx) InsertProfilePayment(ctx context.Context, p *models.ProfilePayment) error {
	if p == nil {
		return errors.New("nil profile payment")
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO profile_payment_history (profile_id, admin_id, amount, paid_until, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ProfileID, p.AdminID, p.Amount, p.PaidUntil, p.Reason)
	if err != nil {
		return fmt.Errorf("insert profile payment: %w", err)
	}
	return nil
}

func (c *DatabaseClient) ProfileBillingInfo(ctx context.Context, profileID string) (*core.ProfileBillingInfo, error) {
	q := `
		SELECT p.profile_id, p.login, p.password, p.note, p.paused, p.proxy,
			p.assigned_admin_id, p.assigned_translator_id, p.paid_until,
			p.is_trial, p.trial_started_at, p.status, p.last_online, p.created_at,
			COALESCE(a.is_restricted, FALSE), COALESCE(t.is_own_translator, FALSE)
		FROM allowed_profiles p
		LEFT JOIN users a ON a.id = p.assigned_admin_id
		LEFT JOIN users t ON t.id = p.assigned_translator_id
		WHERE p.profile_id = $1
	`
	var info core.ProfileBillingInfo
	p := &info.Profile
	err := c.db.QueryRowContext(ctx, q, profileID).Scan(
		&p.ProfileID, &p.Login, &p.Password, &p.Note, &p.Paused, &p.Proxy,
		&p.AssignedAdminID, &p.AssignedTranslatorID, &p.PaidUntil, &p.IsTrial,
		&p.TrialStartedAt, &p.Status, &p.LastOnline, &p.CreatedAt,
		&info.AdminRestricted, &info.TranslatorOwn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile billing info: %w", err)
	}
	return &info, nil
}

// StartTrial consumes the profile's one trial. The guard on trial_started_at
// makes a second activation a no-op reported as false.
func (c *DatabaseClient) StartTrial(ctx context.Context, profileID string, until time.Time) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE allowed_profiles
		SET is_trial = TRUE, trial_started_at = now(), paid_until = $2
		WHERE profile_id = $1 AND trial_started_at IS NULL
	`, profileID, until)
	if err != nil {
		return false, fmt.Errorf("start trial: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_payment_history (profile_id, paid_until, reason)
		VALUES ($1, $2, 'trial')
	`, profileID, until); err != nil {
		return false, fmt.Errorf("append trial row: %w", err)
	}

	return true, tx.Commit()
}

func (c *DatabaseClient) ListBillingHistory(ctx context.Context, viewer *models.User) ([]models.BillingEntry, error) {
	q := `
		SELECT id, user_id, amount, kind, comment, created_by, created_at
		FROM billing_history
	`
	var args []any
	if viewer != nil && viewer.Role != models.RoleDirector {
		q += ` WHERE user_id = $1`
		args = append(args, viewer.ID)
	}
	q += ` ORDER BY created_at DESC LIMIT 500`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list billing history: %w", err)
	}
	defer rows.Close()

	var out []models.BillingEntry
	for rows.Next() {
		var e models.BillingEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Kind, &e.Comment,
			&e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
