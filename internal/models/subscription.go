// Package models содержит доменные структуры сервиса: мерчанта, его подписку,
// входящие события платформы, тревоги о низком остатке и итоги рассылки.
package models

import (
	"math"
	"strings"
	"time"
)

// Plan тарифный план подписки мерчанта.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
)

// Status состояние подписки.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Unlimited значение лимита, которое считается неограниченным.
const Unlimited = math.MaxInt32

// UnlimitedDisplayThreshold лимиты выше этого значения показываются в отчётах как "без ограничений".
const UnlimitedDisplayThreshold = 100000

// TrialPeriod длительность пробного периода.
const TrialPeriod = 7 * 24 * time.Hour

// Limits лимиты тарифного плана.
type Limits struct {
	MaxRecipients     int // Максимум привязанных чатов
	MaxAlertsPerMonth int // Максимум тревог за календарный месяц
}

// PlanLimits таблица лимитов по тарифам.
var PlanLimits = map[Plan]Limits{
	PlanFree:  {MaxRecipients: 1, MaxAlertsPerMonth: 50},
	PlanBasic: {MaxRecipients: 2, MaxAlertsPerMonth: 500},
	PlanPro:   {MaxRecipients: Unlimited, MaxAlertsPerMonth: Unlimited},
}

// ParsePlan разбирает название тарифа из события платформы.
// Неизвестные названия считаются тарифом basic.
func ParsePlan(name string) Plan {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "pro"), strings.Contains(n, "احتراف"), strings.Contains(n, "سنوي"):
		return PlanPro
	case n == string(PlanFree):
		return PlanFree
	default:
		return PlanBasic
	}
}

// Subscription подписка мерчанта, один к одному с Merchant.
type Subscription struct {
	MerchantID          int64
	Plan                Plan
	Status              Status
	StartDate           time.Time
	TrialEndsAt         *time.Time
	EndDate             *time.Time
	MaxRecipients       int
	MaxAlertsPerMonth   int
	AlertsSentThisMonth int
	LastResetAt         time.Time
	LastWeeklyReportAt  *time.Time
	LastMonthlyReportAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewTrialSubscription возвращает подписку в пробном периоде, начинающемся в now.
func NewTrialSubscription(merchantID int64, now time.Time) *Subscription {
	trialEnd := now.Add(TrialPeriod)
	limits := PlanLimits[PlanFree]
	return &Subscription{
		MerchantID:        merchantID,
		Plan:              PlanFree,
		Status:            StatusTrial,
		StartDate:         now,
		TrialEndsAt:       &trialEnd,
		MaxRecipients:     limits.MaxRecipients,
		MaxAlertsPerMonth: limits.MaxAlertsPerMonth,
		LastResetAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsReportable подписка получает плановые отчёты.
func (s *Subscription) IsReportable() bool {
	return s.Status == StatusActive || s.Status == StatusTrial
}

// IsUnlimited лимит тревог не ограничен.
func (s *Subscription) IsUnlimited() bool {
	return s.MaxAlertsPerMonth > UnlimitedDisplayThreshold
}

// RemainingAlerts остаток тревог в текущем месяце, не меньше нуля.
func (s *Subscription) RemainingAlerts() int {
	return max(0, s.MaxAlertsPerMonth-s.AlertsSentThisMonth)
}

// Account мерчант вместе с его подпиской.
type Account struct {
	Merchant     *Merchant
	Subscription *Subscription
}
