// Package quota реализует учёт подписки мерчанта и месячного лимита тревог.
//
// Проверка CanSendAlert и списание IncrementAlertCount остаются отдельными вызовами:
// решение принимается до рассылки, списание фиксирует одну тревогу независимо от числа каналов.
// Lock даёт вызывающему критическую секцию на одного мерчанта внутри процесса,
// а хранилище сериализует изменения одной подписки блокировкой строки.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/lib/period"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Store хранилище подписок.
type Store interface {
	GetSubscription(ctx context.Context, merchantID int64) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	ModifySubscription(ctx context.Context, merchantID int64, fn func(*models.Subscription) error) (*models.Subscription, error)
}

// Guard сервис учёта подписок.
type Guard struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
	locks *keyedMutex
}

// Option настройка Guard.
type Option func(*Guard)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New создаёт Guard.
func New(store Store, log *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		store: store,
		log:   log,
		now:   time.Now,
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Lock захватывает блокировку мерчанта и возвращает функцию освобождения.
func (g *Guard) Lock(merchantID int64) (unlock func()) {
	return g.locks.Lock(merchantID)
}

// CanSendAlert решает, можно ли отправить мерчанту ещё одну тревогу.
// Истечение пробного периода и сброс месячного счётчика сохраняются до возврата,
// даже если ответ отрицательный. Отсутствие подписки означает false без ошибки.
func (g *Guard) CanSendAlert(ctx context.Context, merchantID int64) (bool, error) {
	const op = "quota.CanSendAlert"
	now := g.now().UTC()

	var allowed bool
	_, err := g.store.ModifySubscription(ctx, merchantID, func(sub *models.Subscription) error {
		allowed = g.evaluate(sub, now)
		return nil
	})
	if errors.Is(err, models.ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return allowed, nil
}

func (g *Guard) evaluate(sub *models.Subscription, now time.Time) bool {
	if sub.Status == models.StatusTrial && sub.TrialEndsAt != nil && now.After(*sub.TrialEndsAt) {
		sub.Status = models.StatusExpired
		sub.UpdatedAt = now
		g.log.Info("trial period expired", sl.Merchant(sub.MerchantID))
		return false
	}
	if sub.Status == models.StatusExpired || sub.Status == models.StatusCancelled {
		return false
	}
	if !period.SameMonth(sub.LastResetAt, now) {
		sub.AlertsSentThisMonth = 0
		sub.LastResetAt = now
		sub.UpdatedAt = now
		g.log.Info("monthly alert counter reset", sl.Merchant(sub.MerchantID))
	}
	if sub.Plan == models.PlanFree && sub.AlertsSentThisMonth >= sub.MaxAlertsPerMonth {
		return false
	}
	return true
}

// IncrementAlertCount списывает одну тревогу. Лимит бесплатного тарифа перепроверяется
// в той же транзакции, превышение возвращает models.ErrQuotaExceeded без изменений.
func (g *Guard) IncrementAlertCount(ctx context.Context, merchantID int64) error {
	const op = "quota.IncrementAlertCount"
	now := g.now().UTC()

	_, err := g.store.ModifySubscription(ctx, merchantID, func(sub *models.Subscription) error {
		if sub.Plan == models.PlanFree && sub.AlertsSentThisMonth >= sub.MaxAlertsPerMonth {
			return models.ErrQuotaExceeded
		}
		sub.AlertsSentThisMonth++
		sub.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpgradePlan активирует тариф с новым оплаченным периодом от текущего момента и его лимитами.
func (g *Guard) UpgradePlan(ctx context.Context, merchantID int64, plan models.Plan) error {
	const op = "quota.UpgradePlan"
	limits, ok := models.PlanLimits[plan]
	if !ok {
		return fmt.Errorf("%s: unknown plan %q", op, plan)
	}
	now := g.now().UTC()

	_, err := g.store.ModifySubscription(ctx, merchantID, func(sub *models.Subscription) error {
		end := period.BillingEnd(plan, now)
		sub.Plan = plan
		sub.Status = models.StatusActive
		sub.StartDate = now
		sub.EndDate = &end
		sub.MaxRecipients = limits.MaxRecipients
		sub.MaxAlertsPerMonth = limits.MaxAlertsPerMonth
		sub.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.log.Info("subscription plan upgraded", sl.Merchant(merchantID), slog.String("plan", string(plan)))
	return nil
}

// RenewSubscription продлевает текущий тариф, отсчитывая период от текущего момента.
func (g *Guard) RenewSubscription(ctx context.Context, merchantID int64) error {
	const op = "quota.RenewSubscription"
	now := g.now().UTC()

	_, err := g.store.ModifySubscription(ctx, merchantID, func(sub *models.Subscription) error {
		end := period.BillingEnd(sub.Plan, now)
		sub.Status = models.StatusActive
		sub.EndDate = &end
		sub.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.log.Info("subscription renewed", sl.Merchant(merchantID))
	return nil
}

// CancelSubscription переводит подписку в статус cancelled, запись сохраняется.
func (g *Guard) CancelSubscription(ctx context.Context, merchantID int64) error {
	const op = "quota.CancelSubscription"
	now := g.now().UTC()

	_, err := g.store.ModifySubscription(ctx, merchantID, func(sub *models.Subscription) error {
		sub.Status = models.StatusCancelled
		sub.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.log.Info("subscription cancelled", sl.Merchant(merchantID))
	return nil
}

// CreateTrial создаёт пробную подписку, если её ещё нет, и возвращает текущую подписку мерчанта.
func (g *Guard) CreateTrial(ctx context.Context, merchantID int64) (*models.Subscription, error) {
	const op = "quota.CreateTrial"
	if err := g.store.CreateSubscription(ctx, models.NewTrialSubscription(merchantID, g.now().UTC())); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := g.store.GetSubscription(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Get возвращает подписку мерчанта.
func (g *Guard) Get(ctx context.Context, merchantID int64) (*models.Subscription, error) {
	sub, err := g.store.GetSubscription(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("quota.Get: %w", err)
	}
	return sub, nil
}
