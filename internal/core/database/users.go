package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/novaops/nova-control/internal/models"
)

const userColumns = `id, username, login, password, role, owner_id, balance,
	is_restricted, is_own_translator, ai_enabled, salary, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Login, &u.PasswordHash, &u.Role, &u.OwnerID,
		&u.Balance, &u.IsRestricted, &u.IsOwnTranslator, &u.AIEnabled,
		&u.Salary, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	u, err := scanUser(c.db.QueryRowContext(ctx, q, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (c *DatabaseClient) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, errors.New("nil user")
	}
	const q = `
		INSERT INTO users (username, login, password, role, owner_id,
			is_restricted, is_own_translator, ai_enabled, salary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := c.db.QueryRowContext(ctx, q,
		u.Username, u.Login, u.PasswordHash, u.Role, u.OwnerID,
		u.IsRestricted, u.IsOwnTranslator, u.AIEnabled, u.Salary,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (c *DatabaseClient) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	const q = `
		UPDATE users
		SET username = $2, owner_id = $3, is_restricted = $4,
			is_own_translator = $5, ai_enabled = $6, salary = $7
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q,
		u.ID, u.Username, u.OwnerID, u.IsRestricted, u.IsOwnTranslator,
		u.AIEnabled, u.Salary,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %d", u.ID)
	}
	if u.PasswordHash != "" {
		if _, err := c.db.ExecContext(ctx,
			`UPDATE users SET password = $2 WHERE id = $1`, u.ID, u.PasswordHash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
	}
	return nil
}

func (c *DatabaseClient) DeleteUser(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

func (c *DatabaseClient) ListTeam(ctx context.Context, viewer *models.User) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var args []any
	switch {
	case viewer == nil || viewer.Role == models.RoleDirector:
		// directors see everyone
	case viewer.Role == models.RoleAdmin:
		q += ` WHERE owner_id = $1 OR id = $1`
		args = append(args, viewer.ID)
	default:
		q += ` WHERE id = $1`
		args = append(args, viewer.ID)
	}
	q += ` ORDER BY role, username`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list team: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
