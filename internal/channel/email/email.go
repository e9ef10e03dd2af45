// Package email реализует канал уведомлений по электронной почте.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"

	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Channel почтовый канал.
type Channel struct {
	transport Transport
	log       *slog.Logger
}

// New создаёт канал поверх транспорта.
func New(transport Transport, log *slog.Logger) *Channel {
	return &Channel{transport: transport, log: log}
}

// Kind возвращает вид канала.
func (c *Channel) Kind() models.Channel {
	return models.ChannelEmail
}

// Recipients возвращает адрес мерчанта, если письма включены.
func (c *Channel) Recipients(m *models.Merchant) []string {
	if !m.NotifyEmail || strings.TrimSpace(m.AlertEmail) == "" {
		return nil
	}
	return []string{m.AlertEmail}
}

// Validate проверяет адрес получателя.
func (c *Channel) Validate(recipient string) error {
	addr, err := mail.ParseAddress(recipient)
	if err != nil || addr.Address != strings.TrimSpace(recipient) {
		return fmt.Errorf("%w: email %q", models.ErrInvalidRecipient, recipient)
	}
	return nil
}

// Send отправляет письмо одному получателю.
func (c *Channel) Send(ctx context.Context, recipient string, msg models.Message) error {
	const op = "email.Send"
	if err := c.Validate(recipient); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	client, err := c.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			c.log.Debug("smtp client already closed", sl.Err(closeErr))
		}
	}()

	from := c.transport.From()
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("%s: MAIL FROM: %w", op, err)
	}
	if err = client.Rcpt(recipient); err != nil {
		return fmt.Errorf("%s: RCPT TO: %w", op, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: DATA: %w", op, err)
	}
	if _, err = w.Write([]byte(compose(from, recipient, msg))); err != nil {
		_ = w.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("%s: QUIT: %w", op, err)
	}
	return nil
}

func compose(from, to string, msg models.Message) string {
	subject := msg.Subject
	if subject == "" {
		subject = "تنبيه المخزون"
	}
	return strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(msg.Text, "\n", "\r\n"),
	}, "\r\n")
}
