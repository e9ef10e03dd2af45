// Package automation реализует канал исходящего вебхука для внешних систем автоматизации.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Payload тело запроса к вебхуку.
type Payload struct {
	Event     string             `json:"event"`
	Subject   string             `json:"subject,omitempty"`
	Text      string             `json:"text"`
	Alert     *models.AlertEvent `json:"alert,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Channel канал вебхука.
type Channel struct {
	httpClient *http.Client
	log        *slog.Logger
}

// New создаёт канал с HTTP-клиентом, ограниченным таймаутом timeout.
func New(timeout time.Duration, log *slog.Logger) *Channel {
	return &Channel{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Kind возвращает вид канала.
func (c *Channel) Kind() models.Channel {
	return models.ChannelAutomation
}

// Recipients возвращает адрес вебхука, если он включён.
func (c *Channel) Recipients(m *models.Merchant) []string {
	if !m.NotifyWebhook || strings.TrimSpace(m.WebhookURL) == "" {
		return nil
	}
	return []string{m.WebhookURL}
}

// Validate проверяет, что адрес является абсолютным http(s) URL.
func (c *Channel) Validate(recipient string) error {
	u, err := url.Parse(strings.TrimSpace(recipient))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook url %q", models.ErrInvalidRecipient, recipient)
	}
	return nil
}

// Send отправляет сообщение POST-запросом в JSON. Успехом считается любой ответ 2xx.
func (c *Channel) Send(ctx context.Context, recipient string, msg models.Message) error {
	const op = "automation.Send"
	if err := c.Validate(recipient); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(Payload{
		Event:     msg.Kind,
		Subject:   msg.Subject,
		Text:      msg.Text,
		Alert:     msg.Alert,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(recipient), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	c.log.Debug("automation webhook delivered", slog.String("kind", msg.Kind), slog.Int("status", resp.StatusCode))
	return nil
}
