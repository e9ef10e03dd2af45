// Package merchant управляет мерчантами: установка, настройки, привязка Telegram.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/cache"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/jwt"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// ErrBotNotConfigured имя бота не задано, ссылку привязки построить нельзя.
var ErrBotNotConfigured = errors.New("telegram bot username is not configured")

// Store хранилище мерчантов.
type Store interface {
	GetMerchant(ctx context.Context, id int64) (*models.Merchant, error)
	SaveMerchant(ctx context.Context, m *models.Merchant) error
	DeleteMerchant(ctx context.Context, id int64) error
}

// Subscriptions операции с подпиской, нужные сервису.
type Subscriptions interface {
	CreateTrial(ctx context.Context, merchantID int64) (*models.Subscription, error)
	Get(ctx context.Context, merchantID int64) (*models.Subscription, error)
}

// Cache кэш мерчантов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service сервис мерчантов.
type Service struct {
	store       Store
	subs        Subscriptions
	tokens      jwt.Maker
	botUsername string
	log         *slog.Logger
	now         func() time.Time

	cache    Cache
	cacheTTL time.Duration
}

// Option настройка Service.
type Option func(*Service)

// WithCache включает кэш чтения мерчантов.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New создаёт Service.
func New(store Store, subs Subscriptions, tokens jwt.Maker, botUsername string, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		subs:        subs,
		tokens:      tokens,
		botUsername: botUsername,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает мерчанта, сначала из кэша.
func (s *Service) Get(ctx context.Context, id int64) (*models.Merchant, error) {
	const op = "merchant.Get"
	key := cache.MerchantKey(id)

	if s.cache != nil {
		var m models.Merchant
		found, err := s.cache.Get(ctx, key, &m)
		if err != nil {
			s.log.Warn("merchant cache read failed", sl.Merchant(id), sl.Err(err))
		}
		if found {
			return &m, nil
		}
	}

	m, err := s.store.GetMerchant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, m, s.cacheTTL); err != nil {
			s.log.Warn("merchant cache write failed", sl.Merchant(id), sl.Err(err))
		}
	}
	return m, nil
}

func (s *Service) save(ctx context.Context, m *models.Merchant) error {
	if err := s.store.SaveMerchant(ctx, m); err != nil {
		return err
	}
	s.invalidate(ctx, m.ID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.MerchantKey(id)); err != nil {
		s.log.Warn("merchant cache invalidation failed", sl.Merchant(id), sl.Err(err))
	}
}

// Authorize сохраняет токены платформы. Новый мерчант получает настройки по умолчанию
// и пробную подписку, существующая подписка не меняется.
func (s *Service) Authorize(ctx context.Context, id int64, data models.AuthorizeData) (*models.Merchant, error) {
	const op = "merchant.Authorize"
	now := s.now().UTC()

	m, err := s.store.GetMerchant(ctx, id)
	switch {
	case errors.Is(err, models.ErrMerchantNotFound):
		m = models.NewMerchant(id, now)
		s.log.Info("new merchant installed", sl.Merchant(id))
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.AccessToken = data.AccessToken
	m.RefreshToken = data.RefreshToken
	m.TokenExpiresIn = data.Expires
	if data.StoreName != "" {
		m.Name = data.StoreName
	}
	m.UpdatedAt = now

	if err := s.save(ctx, m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.subs.CreateTrial(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Settings возвращает настройки уведомлений мерчанта.
func (s *Service) Settings(ctx context.Context, id int64) (models.Settings, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return models.Settings{}, fmt.Errorf("merchant.Settings: %w", err)
	}
	return models.SettingsOf(m), nil
}

// UpdateSettings заменяет настройки уведомлений. Число чатов Telegram ограничено тарифом.
func (s *Service) UpdateSettings(ctx context.Context, id int64, settings models.Settings) (*models.Merchant, error) {
	const op = "merchant.UpdateSettings"
	m, err := s.store.GetMerchant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	limit, err := s.maxRecipients(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if chats := models.NewRecipientSet(settings.TelegramChats...); len(chats) > limit {
		return nil, fmt.Errorf("%s: %d chats, plan allows %d: %w", op, len(chats), limit, models.ErrRecipientLimit)
	}

	settings.Apply(m, s.now().UTC())
	if err := s.save(ctx, m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Remove удаляет мерчанта вместе с подпиской.
func (s *Service) Remove(ctx context.Context, id int64) error {
	const op = "merchant.Remove"
	if err := s.store.DeleteMerchant(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, id)
	s.log.Info("merchant removed", sl.Merchant(id))
	return nil
}

// LinkTelegram добавляет чат в получатели мерчанта. Повторная привязка того же чата
// ничего не меняет и возвращает added=false.
func (s *Service) LinkTelegram(ctx context.Context, id int64, chatID string) (count int, added bool, err error) {
	const op = "merchant.LinkTelegram"
	m, err := s.store.GetMerchant(ctx, id)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if m.TelegramChats.Contains(chatID) {
		return len(m.TelegramChats), false, nil
	}

	limit, err := s.maxRecipients(ctx, id)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(m.TelegramChats) >= limit {
		return len(m.TelegramChats), false, fmt.Errorf("%s: %w", op, models.ErrRecipientLimit)
	}

	m.TelegramChats, _ = m.TelegramChats.Add(chatID)
	m.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, m); err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("telegram chat linked", sl.Merchant(id), slog.Int("chats", len(m.TelegramChats)))
	return len(m.TelegramChats), true, nil
}

func (s *Service) maxRecipients(ctx context.Context, id int64) (int, error) {
	sub, err := s.subs.Get(ctx, id)
	if errors.Is(err, models.ErrSubscriptionNotFound) {
		return models.PlanLimits[models.PlanFree].MaxRecipients, nil
	}
	if err != nil {
		return 0, err
	}
	return sub.MaxRecipients, nil
}

// TelegramLink ссылка для привязки чата: https://t.me/<bot>?start=<token>.
func (s *Service) TelegramLink(id int64) (string, error) {
	const op = "merchant.TelegramLink"
	if s.botUsername == "" {
		return "", fmt.Errorf("%s: %w", op, ErrBotNotConfigured)
	}
	token, err := s.tokens.GenerateToken(id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u := url.URL{
		Scheme:   "https",
		Host:     "t.me",
		Path:     "/" + s.botUsername,
		RawQuery: url.Values{"start": {token}}.Encode(),
	}
	return u.String(), nil
}

// ResolveLinkToken возвращает мерчанта, для которого выпущен токен привязки.
func (s *Service) ResolveLinkToken(token string) (int64, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return 0, fmt.Errorf("merchant.ResolveLinkToken: %w", err)
	}
	return claims.MerchantID, nil
}
