// Package period содержит календарные вычисления для учёта тревог и плановых отчётов.
// Все сравнения выполняются в UTC.
package period

import (
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// SameMonth сообщает, попадают ли a и b в один календарный месяц (год и месяц).
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// SameDay сообщает, попадают ли a и b в одну календарную дату.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// OnDay сообщает, приходится ли t на дату now. Пустое значение не совпадает ни с чем.
func OnDay(t *time.Time, now time.Time) bool {
	return t != nil && SameDay(*t, now)
}

// BillingEnd возвращает конец оплаченного периода тарифа, начинающегося в from.
func BillingEnd(plan models.Plan, from time.Time) time.Time {
	switch plan {
	case models.PlanPro:
		return from.AddDate(1, 0, 0)
	case models.PlanBasic:
		return from.AddDate(0, 1, 0)
	default:
		return from.Add(models.TrialPeriod)
	}
}

var arabicMonths = [...]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

// MonthName название месяца для текстов мерчанту.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return m.String()
	}
	return arabicMonths[m-1]
}
