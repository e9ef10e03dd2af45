// Package dispatch рассылает сообщение по всем включённым каналам мерчанта.
//
// Каждая пара (канал, получатель) доставляется отдельной горутиной. Ошибка или паника
// одной доставки фиксируется в итоге и не влияет на остальные. Повторных попыток нет.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/stock-alerts/internal/channel"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// DeliveryError ошибка доставки одному получателю.
type DeliveryError struct {
	Channel   models.Channel
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s to %s: %v", e.Channel, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Observer получает результат каждой доставки.
type Observer interface {
	ObserveDelivery(d models.Delivery)
}

// Coordinator координатор рассылки.
type Coordinator struct {
	channels []channel.Channel
	log      *slog.Logger
	observer Observer
	now      func() time.Time

	wg sync.WaitGroup
}

// Option настройка Coordinator.
type Option func(*Coordinator)

// WithObserver подключает наблюдателя доставок, например метрики.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// New создаёт координатор для набора каналов.
func New(log *slog.Logger, channels []channel.Channel, opts ...Option) *Coordinator {
	c := &Coordinator{
		channels: channels,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type unit struct {
	ch        channel.Channel
	recipient string
}

// HasEnabledChannel есть ли у мерчанта хотя бы один получатель.
func (c *Coordinator) HasEnabledChannel(m *models.Merchant) bool {
	for _, ch := range c.channels {
		if len(ch.Recipients(m)) > 0 {
			return true
		}
	}
	return false
}

func (c *Coordinator) plan(acc models.Account) []unit {
	var units []unit
	for _, ch := range c.channels {
		recipients := ch.Recipients(acc.Merchant)
		if ch.Kind() == models.ChannelTelegram && acc.Subscription != nil {
			if limit := acc.Subscription.MaxRecipients; limit >= 0 && len(recipients) > limit {
				c.log.Warn("chat recipients over plan limit skipped",
					sl.Merchant(acc.Merchant.ID),
					slog.Int("limit", limit),
					slog.Int("skipped", len(recipients)-limit),
				)
				recipients = recipients[:limit]
			}
		}
		for _, r := range recipients {
			units = append(units, unit{ch: ch, recipient: r})
		}
	}
	return units
}

// FanOut доставляет сообщение всем получателям мерчанта и ждёт завершения всех доставок.
func (c *Coordinator) FanOut(ctx context.Context, acc models.Account, msg models.Message) models.Outcome {
	outcome := models.Outcome{
		DispatchID: uuid.NewString(),
		MerchantID: acc.Merchant.ID,
	}
	log := c.log.With(
		slog.String("dispatch_id", outcome.DispatchID),
		sl.Merchant(acc.Merchant.ID),
		slog.String("kind", msg.Kind),
	)

	units := c.plan(acc)
	results := make([]models.Delivery, len(units))

	var g errgroup.Group
	for i, u := range units {
		g.Go(func() error {
			results[i] = c.deliver(ctx, u, msg)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range results {
		outcome.Add(d)
		if c.observer != nil {
			c.observer.ObserveDelivery(d)
		}
		if !d.OK {
			log.Warn("delivery failed",
				slog.String("channel", string(d.Channel)),
				slog.String("recipient", d.Recipient),
				slog.String("error", d.Err),
			)
		}
	}
	log.Info("fan-out finished",
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
	)
	return outcome
}

func (c *Coordinator) deliver(ctx context.Context, u unit, msg models.Message) (d models.Delivery) {
	d = models.Delivery{Channel: u.ch.Kind(), Recipient: u.recipient}
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			d.OK = false
			d.Err = (&DeliveryError{Channel: d.Channel, Recipient: d.Recipient, Err: fmt.Errorf("panic: %v", r)}).Error()
		}
		d.Duration = c.now().Sub(start)
	}()

	if err := u.ch.Validate(u.recipient); err != nil {
		d.Err = (&DeliveryError{Channel: d.Channel, Recipient: d.Recipient, Err: err}).Error()
		return d
	}
	if err := u.ch.Send(ctx, u.recipient, msg); err != nil {
		d.Err = (&DeliveryError{Channel: d.Channel, Recipient: d.Recipient, Err: err}).Error()
		return d
	}
	d.OK = true
	return d
}

// Dispatch запускает FanOut в фоне и сразу возвращается. Рассылка не зависит
// от отмены ctx вызывающего, её завершение ожидает Wait.
func (c *Coordinator) Dispatch(ctx context.Context, acc models.Account, msg models.Message) {
	detached := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.FanOut(detached, acc, msg)
	}()
}

// Wait ждёт завершения всех фоновых рассылок или отмены ctx.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch.Wait: %w", ctx.Err())
	}
}
