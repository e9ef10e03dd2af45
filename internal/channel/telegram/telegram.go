// Package telegram реализует канал уведомлений через бота Telegram.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Sender часть *tele.Bot, используемая каналом.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Channel канал Telegram. Отправки ограничены общим лимитом бота.
type Channel struct {
	bot     Sender
	limiter *rate.Limiter
	log     *slog.Logger
}

// New создаёт бота без обращения к API при старте. HTTP-клиент бота ограничен таймаутом из конфига.
func New(cfg config.Telegram, log *slog.Logger) (*Channel, error) {
	const op = "telegram.New"
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%s: telegram token is empty", op)
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewWithSender(bot, cfg.RateLimit, log), nil
}

// NewWithSender создаёт канал поверх готового отправителя. perSecond <= 0 снимает ограничение.
func NewWithSender(bot Sender, perSecond float64, log *slog.Logger) *Channel {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Channel{
		bot:     bot,
		limiter: rate.NewLimiter(limit, max(1, int(perSecond))),
		log:     log,
	}
}

// Kind возвращает вид канала.
func (c *Channel) Kind() models.Channel {
	return models.ChannelTelegram
}

// Recipients возвращает привязанные чаты, если канал включён.
func (c *Channel) Recipients(m *models.Merchant) []string {
	if !m.NotifyTelegram {
		return nil
	}
	return m.TelegramChats
}

// Validate проверяет, что идентификатор чата является целым числом.
func (c *Channel) Validate(recipient string) error {
	if _, err := parseChatID(recipient); err != nil {
		return err
	}
	return nil
}

// Send отправляет текст сообщения в чат.
func (c *Channel) Send(ctx context.Context, recipient string, msg models.Message) error {
	const op = "telegram.Send"
	chatID, err := parseChatID(recipient)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.bot.Send(&tele.Chat{ID: chatID}, msg.Text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("%s: chat %d: %w", op, chatID, err)
	}
	c.log.Debug("telegram message sent", slog.Int64("chat_id", chatID), slog.String("kind", msg.Kind))
	return nil
}

// Reply отправляет служебный ответ в чат, например на команду /start.
func (c *Channel) Reply(ctx context.Context, chatID int64, text string) error {
	return c.Send(ctx, strconv.FormatInt(chatID, 10), models.Message{Kind: "reply", Text: text})
}

func parseChatID(recipient string) (int64, error) {
	recipient = strings.TrimSpace(recipient)
	// Номер телефона не является идентификатором чата.
	if strings.HasPrefix(recipient, "+") {
		return 0, fmt.Errorf("%w: telegram chat id %q", models.ErrInvalidRecipient, recipient)
	}
	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: telegram chat id %q", models.ErrInvalidRecipient, recipient)
	}
	return id, nil
}

// ErrNotCommand обновление не содержит команды /start.
var ErrNotCommand = errors.New("update is not a start command")

// StartCommand извлекает чат и аргумент команды /start из обновления бота.
func StartCommand(u tele.Update) (chatID int64, payload string, err error) {
	if u.Message == nil || u.Message.Chat == nil {
		return 0, "", ErrNotCommand
	}
	fields := strings.Fields(u.Message.Text)
	if len(fields) == 0 {
		return 0, "", ErrNotCommand
	}
	// В группах команда приходит как /start@bot_name.
	cmd, _, _ := strings.Cut(fields[0], "@")
	if cmd != "/start" {
		return 0, "", ErrNotCommand
	}
	if len(fields) > 1 {
		payload = fields[1]
	}
	return u.Message.Chat.ID, payload, nil
}
