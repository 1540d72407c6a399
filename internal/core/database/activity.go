package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/novaops/nova-control/internal/models"
)

// RecordMessage inserts the message content, the message row and its
// activity_log duplicate in a single transaction, so every successful message
// is guaranteed a matching activity row.
func (c *DatabaseClient) RecordMessage(ctx context.Context, msg *models.Message, content *models.MessageContent, act *models.ActivityRecord) error {
	if msg == nil || content == nil || act == nil {
		return errors.New("nil message, content or activity record")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_content (id, text, media_url) VALUES ($1, $2, $3)
	`, content.ID, content.Text, content.MediaURL); err != nil {
		return fmt.Errorf("insert content: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages
			(profile_id, man_id, content_id, kind, admin_id, translator_id,
			 error_log_id, used_ai, is_reply, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, msg.ProfileID, msg.ManID, content.ID, msg.Kind, msg.AdminID,
		msg.TranslatorID, msg.ErrorLogID, msg.UsedAI, msg.IsReply, msg.SentAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log
			(profile_id, action_type, man_id, template_text, message_text,
			 response_time_sec, used_ai, is_reply, admin_id, translator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, act.ProfileID, act.ActionType, act.ManID, act.TemplateText,
		act.MessageText, act.ResponseTimeSec, act.UsedAI, act.IsReply,
		act.AdminID, act.TranslatorID, msg.SentAt); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	return tx.Commit()
}

func (c *DatabaseClient) RecordError(ctx context.Context, e *models.ErrorLog) (int64, error) {
	if e == nil {
		return 0, errors.New("nil error log")
	}
	var id int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO error_logs (profile_id, code, message) VALUES ($1, $2, $3)
		RETURNING id
	`, e.ProfileID, e.Code, e.Message).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert error log: %w", err)
	}
	return id, nil
}

func (c *DatabaseClient) InsertActivity(ctx context.Context, act *models.ActivityRecord) error {
	if act == nil {
		return errors.New("nil activity record")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO activity_log
			(profile_id, action_type, man_id, template_text, message_text,
			 response_time_sec, used_ai, is_reply, admin_id, translator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, act.ProfileID, act.ActionType, act.ManID, act.TemplateText,
		act.MessageText, act.ResponseTimeSec, act.UsedAI, act.IsReply,
		act.AdminID, act.TranslatorID)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (c *DatabaseClient) InsertIncoming(ctx context.Context, im *models.IncomingMessage) error {
	if im == nil {
		return errors.New("nil incoming message")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO incoming_messages (profile_id, man_id, text, is_first_from_man)
		VALUES ($1, $2, $3, $4)
	`, im.ProfileID, im.ManID, im.Text, im.IsFirstFromMan)
	if err != nil {
		return fmt.Errorf("insert incoming: %w", err)
	}
	return nil
}

func (c *DatabaseClient) InsertPing(ctx context.Context, p *models.ActivityPing) error {
	if p == nil {
		return errors.New("nil ping")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO activity_pings (profile_id, translator_id) VALUES ($1, $2)
	`, p.ProfileID, p.TranslatorID)
	if err != nil {
		return fmt.Errorf("insert ping: %w", err)
	}
	return nil
}

func (c *DatabaseClient) DeletePingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM activity_pings WHERE pinged_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete pings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
