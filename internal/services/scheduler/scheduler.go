// Package scheduler периодически рассылает еженедельные и ежемесячные отчёты.
//
// Задача запускается cron по расписанию и сразу после старта. Повторная отправка
// в тот же день исключается отметками LastWeeklyReportAt и LastMonthlyReportAt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/period"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/services/report"
)

// Kind вид отчёта.
type Kind string

const (
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// ParseKind разбирает вид отчёта.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWeekly, KindMonthly:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// ErrNotStarted планировщик не запущен.
var ErrNotStarted = errors.New("scheduler is not started")

// Store хранилище мерчантов и подписок.
type Store interface {
	ListReportable(ctx context.Context) ([]models.Account, error)
	GetMerchant(ctx context.Context, id int64) (*models.Merchant, error)
	GetSubscription(ctx context.Context, merchantID int64) (*models.Subscription, error)
	ModifySubscription(ctx context.Context, merchantID int64, fn func(*models.Subscription) error) (*models.Subscription, error)
}

// FanOut синхронная рассылка по каналам мерчанта.
type FanOut interface {
	FanOut(ctx context.Context, acc models.Account, msg models.Message) models.Outcome
	HasEnabledChannel(m *models.Merchant) bool
}

// Observer учитывает отправленные отчёты.
type Observer interface {
	ObserveReport(kind string)
}

// Service планировщик отчётов.
type Service struct {
	store    Store
	fanout   FanOut
	cfg      config.Reports
	log      *slog.Logger
	now      func() time.Time
	observer Observer

	mu      sync.Mutex
	c       *cron.Cron
	initial sync.WaitGroup
}

// Option настройка Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObserver подключает учёт отчётов.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// New создаёт планировщик.
func New(store Store, fanout FanOut, cfg config.Reports, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		fanout: fanout,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start регистрирует задачу в cron и выполняет первый проход в фоне.
// Проходы не пересекаются: следующий пропускается, пока идёт предыдущий.
func (s *Service) Start(ctx context.Context) error {
	const op = "scheduler.Start"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithLocation(time.UTC), cron.WithLogger(logger))
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if err := s.Tick(ctx); err != nil {
			s.log.Error("report tick finished with errors", sl.Err(err))
		}
	}))
	if _, err := c.AddJob(s.cfg.Schedule, job); err != nil {
		return fmt.Errorf("%s: schedule %q: %w", op, s.cfg.Schedule, err)
	}
	c.Start()
	s.c = c

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()

	s.log.Info("report scheduler started",
		slog.String("schedule", s.cfg.Schedule),
		slog.String("weekly_day", s.cfg.WeeklyDay.String()),
		slog.Int("monthly_day", s.cfg.MonthlyDay),
	)
	return nil
}

// Stop останавливает cron и ждёт текущий проход или отмену ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return ErrNotStarted
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("report scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler.Stop: %w", ctx.Err())
	}
}

// Tick один проход планировщика. Ошибки по отдельным мерчантам логируются,
// проход продолжается, а итоговая ошибка объединяет их.
func (s *Service) Tick(ctx context.Context) error {
	const op = "scheduler.Tick"
	now := s.now().UTC()

	var kinds []Kind
	if now.Weekday() == s.cfg.WeeklyDay {
		kinds = append(kinds, KindWeekly)
	}
	if now.Day() == s.cfg.MonthlyDay {
		kinds = append(kinds, KindMonthly)
	}
	if len(kinds) == 0 {
		s.log.Debug("no reports due today", slog.Time("now", now))
		return nil
	}

	accounts, err := s.store.ListReportable(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("processing scheduled reports", slog.Int("merchants", len(accounts)), slog.Any("kinds", kinds))

	var errs []error
	channelless := 0
	for _, acc := range accounts {
		noChannel := false
		for _, kind := range kinds {
			if ctx.Err() != nil {
				return errors.Join(append(errs, fmt.Errorf("%s: %w", op, ctx.Err()))...)
			}
			res, err := s.process(ctx, kind, acc, now)
			if err != nil {
				s.log.Error("failed to send report", sl.Merchant(acc.Merchant.ID), slog.String("kind", string(kind)), sl.Err(err))
				errs = append(errs, err)
				continue
			}
			switch res {
			case resultSent:
				s.log.Info("report sent", sl.Merchant(acc.Merchant.ID), slog.String("kind", string(kind)))
			case resultNoChannel:
				noChannel = true
			}
		}
		if noChannel {
			channelless++
		}
	}
	if channelless > 0 {
		s.log.Debug("merchants without enabled channels skipped", slog.Int("count", channelless))
	}
	return errors.Join(errs...)
}

// result итог обработки одного мерчанта.
type result int

const (
	resultSkipped result = iota
	resultNoChannel
	resultSent
)

func (s *Service) process(ctx context.Context, kind Kind, acc models.Account, now time.Time) (res result, err error) {
	const op = "process"
	defer func() {
		if r := recover(); r != nil {
			res = resultSkipped
			err = fmt.Errorf("scheduler.%s: merchant %d: panic: %v", op, acc.Merchant.ID, r)
		}
	}()

	if kind == KindWeekly && period.OnDay(acc.Subscription.LastWeeklyReportAt, now) {
		return resultSkipped, nil
	}
	if kind == KindMonthly && period.OnDay(acc.Subscription.LastMonthlyReportAt, now) {
		return resultSkipped, nil
	}
	if !s.fanout.HasEnabledChannel(acc.Merchant) {
		return resultNoChannel, nil
	}

	if err := s.send(ctx, kind, acc, now); err != nil {
		return resultSkipped, fmt.Errorf("scheduler.%s: merchant %d: %w", op, acc.Merchant.ID, err)
	}
	return resultSent, nil
}

// send строит отчёт, рассылает его и ставит отметку независимо от результата доставки.
func (s *Service) send(ctx context.Context, kind Kind, acc models.Account, now time.Time) error {
	msg, err := message(kind, acc.Subscription, now)
	if err != nil {
		return err
	}

	outcome := s.fanout.FanOut(ctx, acc, msg)
	if s.observer != nil {
		s.observer.ObserveReport(string(kind))
	}

	_, err = s.store.ModifySubscription(ctx, acc.Merchant.ID, func(sub *models.Subscription) error {
		stamp := now
		if kind == KindWeekly {
			sub.LastWeeklyReportAt = &stamp
		} else {
			sub.LastMonthlyReportAt = &stamp
		}
		sub.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("stamp %s report (dispatch %s): %w", kind, outcome.DispatchID, err)
	}
	return nil
}

// SendNow отправляет отчёт мерчанту вне расписания без проверки отметок.
func (s *Service) SendNow(ctx context.Context, kind Kind, merchantID int64) (models.Outcome, error) {
	const op = "scheduler.SendNow"
	m, err := s.store.GetMerchant(ctx, merchantID)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.store.GetSubscription(ctx, merchantID)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := message(kind, sub, s.now().UTC())
	if err != nil {
		return models.Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.fanout.FanOut(ctx, models.Account{Merchant: m, Subscription: sub}, msg), nil
}

func message(kind Kind, sub *models.Subscription, now time.Time) (models.Message, error) {
	switch kind {
	case KindWeekly:
		return report.Weekly(sub), nil
	case KindMonthly:
		return report.Monthly(sub, now), nil
	}
	return models.Message{}, fmt.Errorf("unknown report kind %q", kind)
}

// cronLogger передаёт сообщения cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, sl.Err(err))...)
}
