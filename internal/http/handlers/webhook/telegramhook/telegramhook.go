// Package telegramhook обрабатывает обновления бота Telegram.
//
// Поддерживается только команда /start <token>: чат привязывается к мерчанту,
// для которого выпущен токен. Telegram всегда получает 200.
package telegramhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	tele "gopkg.in/telebot.v4"

	"github.com/magabrotheeeer/stock-alerts/internal/channel/telegram"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Ответы бота.
const (
	MsgWelcome       = "👋 أهلاً بك! يرجى استخدام رابط التفعيل من صفحة الإعدادات."
	MsgNotFound      = "❌ لم يتم العثور على المتجر بهذا الرقم. تأكد من الرابط."
	MsgAlreadyLinked = "ℹ️ هذا الحساب مرتبط بالفعل."
	MsgLimitReached  = "⚠️ وصلت إلى الحد الأقصى للحسابات المتصلة في باقتك الحالية."
	msgLinked        = "✅ تم ربط حسابك بنجاح! ستتلقى التنبيهات هنا.\n(الحسابات المتصلة: %d)"
)

// Linker привязка чатов к мерчантам.
type Linker interface {
	ResolveLinkToken(token string) (int64, error)
	LinkTelegram(ctx context.Context, id int64, chatID string) (count int, added bool, err error)
}

// Replier отправляет ответ в чат.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Handler обработчик вебхука бота.
type Handler struct {
	log     *slog.Logger
	linker  Linker
	replier Replier
}

// New создаёт Handler.
func New(log *slog.Logger, linker Linker, replier Replier) *Handler {
	return &Handler{
		log:     log,
		linker:  linker,
		replier: replier,
	}
}

// ServeHTTP обрабатывает обновление.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.telegram"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	defer w.WriteHeader(http.StatusOK)

	var update tele.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Error("failed to decode telegram update", sl.Err(err))
		return
	}

	chatID, payload, err := telegram.StartCommand(update)
	if errors.Is(err, telegram.ErrNotCommand) {
		log.Debug("telegram update ignored", slog.Int("update_id", update.ID))
		return
	}
	log = log.With(slog.Int64("chat_id", chatID))

	reply := h.link(r.Context(), log, chatID, payload)
	if err := h.replier.Reply(r.Context(), chatID, reply); err != nil {
		log.Error("failed to reply to telegram chat", sl.Err(err))
	}
}

func (h *Handler) link(ctx context.Context, log *slog.Logger, chatID int64, token string) string {
	if token == "" {
		return MsgWelcome
	}
	merchantID, err := h.linker.ResolveLinkToken(token)
	if err != nil {
		log.Warn("invalid link token", sl.Err(err))
		return MsgNotFound
	}

	count, added, err := h.linker.LinkTelegram(ctx, merchantID, strconv.FormatInt(chatID, 10))
	switch {
	case errors.Is(err, models.ErrMerchantNotFound):
		return MsgNotFound
	case errors.Is(err, models.ErrRecipientLimit):
		return MsgLimitReached
	case err != nil:
		log.Error("failed to link telegram chat", sl.Merchant(merchantID), sl.Err(err))
		return MsgNotFound
	case !added:
		return MsgAlreadyLinked
	}
	log.Info("telegram chat linked", sl.Merchant(merchantID))
	return fmt.Sprintf(msgLinked, count)
}
