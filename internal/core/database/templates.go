package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/novaops/nova-control/internal/models"
)

func (c *DatabaseClient) ListTemplates(ctx context.Context, userID int64) ([]models.FavoriteTemplate, error) {
	const q = `
		SELECT id, user_id, title, text, kind, created_at
		FROM favorite_templates WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []models.FavoriteTemplate
	for rows.Next() {
		var t models.FavoriteTemplate
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Text, &t.Kind, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CreateTemplate(ctx context.Context, t *models.FavoriteTemplate) (int64, error) {
	if t == nil {
		return 0, errors.New("nil template")
	}
	var id int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO favorite_templates (user_id, title, text, kind)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, t.UserID, t.Title, t.Text, t.Kind).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create template: %w", err)
	}
	return id, nil
}

// DeleteTemplate only deletes the caller's own rows.
func (c *DatabaseClient) DeleteTemplate(ctx context.Context, userID, id int64) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM favorite_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template not found: %d", id)
	}
	return nil
}
