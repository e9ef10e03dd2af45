package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

const merchantColumns = `id, name, alert_threshold, alert_email, notify_email, telegram_chat_id,
	notify_telegram, webhook_url, notify_webhook, access_token, refresh_token, token_expires_in,
	created_at, updated_at`

func scanMerchant(row scanner) (*models.Merchant, error) {
	var (
		m     models.Merchant
		chats string
	)
	err := row.Scan(&m.ID, &m.Name, &m.AlertThreshold, &m.AlertEmail, &m.NotifyEmail, &chats,
		&m.NotifyTelegram, &m.WebhookURL, &m.NotifyWebhook, &m.AccessToken, &m.RefreshToken,
		&m.TokenExpiresIn, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.TelegramChats = models.ParseRecipientSet(chats)
	return &m, nil
}

// GetMerchant возвращает мерчанта по идентификатору.
func (s *Storage) GetMerchant(ctx context.Context, id int64) (*models.Merchant, error) {
	const op = "storage.GetMerchant"

	row := s.DB.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
	m, err := scanMerchant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrMerchantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// SaveMerchant создаёт мерчанта или обновляет существующего.
func (s *Storage) SaveMerchant(ctx context.Context, m *models.Merchant) error {
	const op = "storage.SaveMerchant"

	query := `INSERT INTO merchants (` + merchantColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				alert_threshold = EXCLUDED.alert_threshold,
				alert_email = EXCLUDED.alert_email,
				notify_email = EXCLUDED.notify_email,
				telegram_chat_id = EXCLUDED.telegram_chat_id,
				notify_telegram = EXCLUDED.notify_telegram,
				webhook_url = EXCLUDED.webhook_url,
				notify_webhook = EXCLUDED.notify_webhook,
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				token_expires_in = EXCLUDED.token_expires_in,
				updated_at = EXCLUDED.updated_at`
	_, err := s.DB.ExecContext(ctx, query,
		m.ID, m.Name, m.AlertThreshold, m.AlertEmail, m.NotifyEmail, m.TelegramChats.String(),
		m.NotifyTelegram, m.WebhookURL, m.NotifyWebhook, m.AccessToken, m.RefreshToken,
		m.TokenExpiresIn, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteMerchant удаляет мерчанта вместе с подпиской.
func (s *Storage) DeleteMerchant(ctx context.Context, id int64) error {
	const op = "storage.DeleteMerchant"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM merchants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrMerchantNotFound)
	}
	return nil
}
