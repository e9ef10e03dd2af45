package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

const subscriptionColumns = `merchant_id, plan, status, start_date, trial_ends_at, end_date,
	max_recipients, max_alerts_per_month, alerts_sent_this_month, last_reset_at,
	last_weekly_report_at, last_monthly_report_at, created_at, updated_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.MerchantID, &sub.Plan, &sub.Status, &sub.StartDate, &sub.TrialEndsAt,
		&sub.EndDate, &sub.MaxRecipients, &sub.MaxAlertsPerMonth, &sub.AlertsSentThisMonth,
		&sub.LastResetAt, &sub.LastWeeklyReportAt, &sub.LastMonthlyReportAt, &sub.CreatedAt,
		&sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription возвращает подписку мерчанта.
func (s *Storage) GetSubscription(ctx context.Context, merchantID int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE merchant_id = $1`, merchantID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// CreateSubscription вставляет подписку. Существующая подписка не перезаписывается.
func (s *Storage) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.CreateSubscription"

	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  ON CONFLICT (merchant_id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query, subscriptionArgs(sub)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ModifySubscription читает подписку под блокировкой строки, применяет fn и сохраняет результат
// в той же транзакции. Ошибка fn откатывает транзакцию и возвращается как есть.
func (s *Storage) ModifySubscription(ctx context.Context, merchantID int64,
	fn func(*models.Subscription) error) (*models.Subscription, error) {
	const op = "storage.ModifySubscription"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE merchant_id = $1 FOR UPDATE`, merchantID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = fn(sub); err != nil {
		return nil, err
	}

	query := `UPDATE subscriptions SET
				plan = $2, status = $3, start_date = $4, trial_ends_at = $5, end_date = $6,
				max_recipients = $7, max_alerts_per_month = $8, alerts_sent_this_month = $9,
				last_reset_at = $10, last_weekly_report_at = $11, last_monthly_report_at = $12,
				created_at = $13, updated_at = $14
			  WHERE merchant_id = $1`
	if _, err = tx.ExecContext(ctx, query, subscriptionArgs(sub)...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListReportable возвращает мерчантов с подпиской в статусе active или trial.
func (s *Storage) ListReportable(ctx context.Context) ([]models.Account, error) {
	const op = "storage.ListReportable"

	query := `SELECT m.id, m.name, m.alert_threshold, m.alert_email, m.notify_email, m.telegram_chat_id,
				m.notify_telegram, m.webhook_url, m.notify_webhook, m.access_token, m.refresh_token,
				m.token_expires_in, m.created_at, m.updated_at,
				s.merchant_id, s.plan, s.status, s.start_date, s.trial_ends_at, s.end_date,
				s.max_recipients, s.max_alerts_per_month, s.alerts_sent_this_month, s.last_reset_at,
				s.last_weekly_report_at, s.last_monthly_report_at, s.created_at, s.updated_at
			  FROM subscriptions s
			  JOIN merchants m ON m.id = s.merchant_id
			  WHERE s.status IN ('active', 'trial')
			  ORDER BY m.id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var res []models.Account
	for rows.Next() {
		var (
			m     models.Merchant
			sub   models.Subscription
			chats string
		)
		err = rows.Scan(&m.ID, &m.Name, &m.AlertThreshold, &m.AlertEmail, &m.NotifyEmail, &chats,
			&m.NotifyTelegram, &m.WebhookURL, &m.NotifyWebhook, &m.AccessToken, &m.RefreshToken,
			&m.TokenExpiresIn, &m.CreatedAt, &m.UpdatedAt,
			&sub.MerchantID, &sub.Plan, &sub.Status, &sub.StartDate, &sub.TrialEndsAt, &sub.EndDate,
			&sub.MaxRecipients, &sub.MaxAlertsPerMonth, &sub.AlertsSentThisMonth, &sub.LastResetAt,
			&sub.LastWeeklyReportAt, &sub.LastMonthlyReportAt, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.TelegramChats = models.ParseRecipientSet(chats)
		res = append(res, models.Account{Merchant: &m, Subscription: &sub})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func subscriptionArgs(sub *models.Subscription) []any {
	return []any{
		sub.MerchantID, string(sub.Plan), string(sub.Status), sub.StartDate, sub.TrialEndsAt, sub.EndDate,
		sub.MaxRecipients, sub.MaxAlertsPerMonth, sub.AlertsSentThisMonth, sub.LastResetAt,
		sub.LastWeeklyReportAt, sub.LastMonthlyReportAt, sub.CreatedAt, sub.UpdatedAt,
	}
}
