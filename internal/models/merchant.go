package models

import (
	"slices"
	"strings"
	"time"
)

// DefaultAlertThreshold порог остатка по умолчанию.
const DefaultAlertThreshold = 5

// Merchant магазин на платформе и его настройки уведомлений.
type Merchant struct {
	ID             int64        // Идентификатор магазина на платформе
	Name           string       // Название магазина
	AlertThreshold int          // Порог остатка, при котором отправляется тревога
	AlertEmail     string       // Адрес для писем
	NotifyEmail    bool         // Включены ли письма
	TelegramChats  RecipientSet // Привязанные чаты Telegram
	NotifyTelegram bool         // Включён ли Telegram
	WebhookURL     string       // Адрес внешней автоматизации
	NotifyWebhook  bool         // Включён ли вебхук
	AccessToken    string       // Токены платформы, ядром не интерпретируются
	RefreshToken   string
	TokenExpiresIn int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewMerchant возвращает мерчанта с настройками по умолчанию.
func NewMerchant(id int64, now time.Time) *Merchant {
	return &Merchant{
		ID:             id,
		AlertThreshold: DefaultAlertThreshold,
		NotifyEmail:    true,
		NotifyTelegram: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Settings изменяемые мерчантом настройки уведомлений.
type Settings struct {
	AlertThreshold int      `json:"alert_threshold" validate:"gte=0"`
	AlertEmail     string   `json:"alert_email,omitempty" validate:"omitempty,email"`
	NotifyEmail    bool     `json:"notify_email"`
	TelegramChats  []string `json:"telegram_chat_ids,omitempty" validate:"omitempty,dive,numeric"`
	NotifyTelegram bool     `json:"notify_telegram"`
	WebhookURL     string   `json:"custom_webhook_url,omitempty" validate:"omitempty,url"`
	NotifyWebhook  bool     `json:"notify_webhook"`
}

// SettingsOf возвращает текущие настройки мерчанта.
func SettingsOf(m *Merchant) Settings {
	return Settings{
		AlertThreshold: m.AlertThreshold,
		AlertEmail:     m.AlertEmail,
		NotifyEmail:    m.NotifyEmail,
		TelegramChats:  slices.Clone(m.TelegramChats),
		NotifyTelegram: m.NotifyTelegram,
		WebhookURL:     m.WebhookURL,
		NotifyWebhook:  m.NotifyWebhook,
	}
}

// Apply переносит настройки в мерчанта.
func (s Settings) Apply(m *Merchant, now time.Time) {
	m.AlertThreshold = s.AlertThreshold
	m.AlertEmail = strings.TrimSpace(s.AlertEmail)
	m.NotifyEmail = s.NotifyEmail
	m.TelegramChats = NewRecipientSet(s.TelegramChats...)
	m.NotifyTelegram = s.NotifyTelegram
	m.WebhookURL = strings.TrimSpace(s.WebhookURL)
	m.NotifyWebhook = s.NotifyWebhook
	m.UpdatedAt = now
}

// RecipientSet упорядоченное множество идентификаторов получателей.
type RecipientSet []string

// NewRecipientSet строит множество, отбрасывая пустые значения и повторы с сохранением порядка.
func NewRecipientSet(ids ...string) RecipientSet {
	set := RecipientSet{}
	for _, id := range ids {
		set, _ = set.Add(id)
	}
	return set
}

// ParseRecipientSet разбирает список, разделённый запятыми.
func ParseRecipientSet(raw string) RecipientSet {
	if strings.TrimSpace(raw) == "" {
		return RecipientSet{}
	}
	return NewRecipientSet(strings.Split(raw, ",")...)
}

// Add добавляет идентификатор в конец, если его ещё нет. Второе значение сообщает, было ли добавление.
func (s RecipientSet) Add(id string) (RecipientSet, bool) {
	id = strings.TrimSpace(id)
	if id == "" || s.Contains(id) {
		return s, false
	}
	return append(s, id), true
}

// Contains проверяет наличие идентификатора.
func (s RecipientSet) Contains(id string) bool {
	return slices.Contains(s, strings.TrimSpace(id))
}

// String возвращает представление для хранения.
func (s RecipientSet) String() string {
	return strings.Join(s, ",")
}
