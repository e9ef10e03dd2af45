// Package pipeline связывает классификатор событий, учёт подписки и рассылку.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/services/classifier"
	"github.com/magabrotheeeer/stock-alerts/internal/services/report"
)

// Decision итог обработки события, видимый мерчанту.
type Decision string

const (
	DecisionIgnored             Decision = "ignored"
	DecisionAlertSent           Decision = "alert-sent"
	DecisionNoAlert             Decision = "no-alert"
	DecisionQuotaExceeded       Decision = "quota-exceeded"
	DecisionMerchantNotFound    Decision = "merchant-not-found"
	DecisionSubscriptionUpdated Decision = "subscription-updated"
	DecisionMerchantAuthorized  Decision = "merchant-authorized"
	DecisionMerchantRemoved     Decision = "merchant-removed"
)

// Result результат обработки одного события.
type Result struct {
	Decision   Decision
	Event      string
	MerchantID int64
	Alert      *models.AlertEvent
}

// Merchants сервис мерчантов.
type Merchants interface {
	Get(ctx context.Context, id int64) (*models.Merchant, error)
	Authorize(ctx context.Context, id int64, data models.AuthorizeData) (*models.Merchant, error)
	Remove(ctx context.Context, id int64) error
}

// Quota учёт подписки.
type Quota interface {
	Lock(merchantID int64) (unlock func())
	CanSendAlert(ctx context.Context, merchantID int64) (bool, error)
	IncrementAlertCount(ctx context.Context, merchantID int64) error
	Get(ctx context.Context, merchantID int64) (*models.Subscription, error)
	UpgradePlan(ctx context.Context, merchantID int64, plan models.Plan) error
	RenewSubscription(ctx context.Context, merchantID int64) error
	CancelSubscription(ctx context.Context, merchantID int64) error
}

// Dispatcher фоновая рассылка.
type Dispatcher interface {
	Dispatch(ctx context.Context, acc models.Account, msg models.Message)
}

// Observer учитывает обработанные события.
type Observer interface {
	ObserveEvent(event, decision string)
}

// Processor обработчик событий платформы.
type Processor struct {
	merchants  Merchants
	quota      Quota
	dispatcher Dispatcher
	log        *slog.Logger
	observer   Observer
}

// New создаёт Processor. observer может быть nil.
func New(merchants Merchants, quota Quota, dispatcher Dispatcher, observer Observer, log *slog.Logger) *Processor {
	return &Processor{
		merchants:  merchants,
		quota:      quota,
		dispatcher: dispatcher,
		observer:   observer,
		log:        log,
	}
}

// Process обрабатывает событие. Ошибка возвращается только для наблюдаемости,
// источник событий получает подтверждение в любом случае.
func (p *Processor) Process(ctx context.Context, env models.Envelope) (Result, error) {
	const op = "pipeline.Process"
	log := p.log.With(slog.String("op", op), slog.String("event", env.Event), sl.Merchant(env.MerchantID))

	res, err := p.process(ctx, env)
	if p.observer != nil {
		p.observer.ObserveEvent(env.Event, string(res.Decision))
	}
	if err != nil {
		log.Error("failed to process event", slog.String("decision", string(res.Decision)), sl.Err(err))
		return res, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("event processed", slog.String("decision", string(res.Decision)))
	return res, nil
}

func (p *Processor) process(ctx context.Context, env models.Envelope) (Result, error) {
	res := Result{Decision: DecisionIgnored, Event: env.Event, MerchantID: env.MerchantID}

	ev, err := classifier.Classify(env)
	if err != nil {
		return res, err
	}

	switch ev.Kind {
	case classifier.KindStockUpdate:
		return p.stockUpdate(ctx, ev, res)
	case classifier.KindSubscriptionActivated:
		return p.subscription(res, p.quota.UpgradePlan(ctx, ev.MerchantID, ev.Plan))
	case classifier.KindSubscriptionRenewed:
		return p.subscription(res, p.quota.RenewSubscription(ctx, ev.MerchantID))
	case classifier.KindSubscriptionCancelled:
		return p.subscription(res, p.quota.CancelSubscription(ctx, ev.MerchantID))
	case classifier.KindAppUninstalled:
		err := p.merchants.Remove(ctx, ev.MerchantID)
		if errors.Is(err, models.ErrMerchantNotFound) {
			res.Decision = DecisionMerchantNotFound
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Decision = DecisionMerchantRemoved
		return res, nil
	case classifier.KindMerchantAuthorized:
		if _, err := p.merchants.Authorize(ctx, ev.MerchantID, *ev.Authorize); err != nil {
			return res, err
		}
		res.Decision = DecisionMerchantAuthorized
		return res, nil
	}
	return res, nil
}

func (p *Processor) subscription(res Result, err error) (Result, error) {
	if errors.Is(err, models.ErrSubscriptionNotFound) {
		res.Decision = DecisionMerchantNotFound
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Decision = DecisionSubscriptionUpdated
	return res, nil
}

// stockUpdate проверяет квоту и списывает тревогу до запуска рассылки.
// Проверка и списание выполняются под блокировкой мерчанта.
func (p *Processor) stockUpdate(ctx context.Context, ev classifier.Event, res Result) (Result, error) {
	m, err := p.merchants.Get(ctx, ev.MerchantID)
	if errors.Is(err, models.ErrMerchantNotFound) {
		res.Decision = DecisionMerchantNotFound
		return res, nil
	}
	if err != nil {
		return res, err
	}

	alert, ok := classifier.Decide(ev, m)
	if !ok {
		res.Decision = DecisionNoAlert
		return res, nil
	}
	res.Alert = alert

	unlock := p.quota.Lock(ev.MerchantID)
	defer unlock()

	allowed, err := p.quota.CanSendAlert(ctx, ev.MerchantID)
	if err != nil {
		return res, err
	}
	if !allowed {
		res.Decision = DecisionQuotaExceeded
		return res, nil
	}
	if err := p.quota.IncrementAlertCount(ctx, ev.MerchantID); err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			res.Decision = DecisionQuotaExceeded
			return res, nil
		}
		return res, err
	}

	acc := models.Account{Merchant: m}
	if sub, err := p.quota.Get(ctx, ev.MerchantID); err != nil {
		p.log.Warn("subscription unavailable, recipient cap not applied", sl.Merchant(ev.MerchantID), sl.Err(err))
	} else {
		acc.Subscription = sub
	}

	p.dispatcher.Dispatch(ctx, acc, report.Alert(alert))
	res.Decision = DecisionAlertSent
	return res, nil
}
