// Package report формирует тексты тревог и плановых отчётов.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/lib/period"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Виды сообщений.
const (
	KindAlert   = "alert"
	KindWeekly  = "weekly_report"
	KindMonthly = "monthly_report"
)

const separator = "--------------"

// Alert сообщение о низком остатке товара.
func Alert(ev *models.AlertEvent) models.Message {
	var b strings.Builder
	b.WriteString("⚠️ تنبيه: المخزون منخفض\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "📦 المنتج: %s\n", ev.ProductName)
	if ev.SKU != "" {
		fmt.Fprintf(&b, "🏷️ رمز المنتج: %s\n", ev.SKU)
	}
	fmt.Fprintf(&b, "🔢 الكمية المتبقية: %d\n", ev.Quantity)
	fmt.Fprintf(&b, "📉 حد التنبيه: %d\n", ev.Threshold)

	return models.Message{
		Kind:    KindAlert,
		Subject: "تنبيه المخزون: " + ev.ProductName,
		Text:    b.String(),
		Alert:   ev,
	}
}

// Weekly еженедельный отчёт об использовании лимита.
func Weekly(sub *models.Subscription) models.Message {
	var b strings.Builder
	b.WriteString("📊 التقرير الأسبوعي\n")
	b.WriteString("🗓️ الفترة: أخر 7 أيام\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "🔔 التنبيهات المرسلة هذا الشهر: %d\n", sub.AlertsSentThisMonth)
	fmt.Fprintf(&b, "📈 الحد المسموح: %s\n", limit(sub))
	if sub.IsUnlimited() {
		b.WriteString("✅ الرصيد المتبقي: غير محدود\n")
	} else {
		fmt.Fprintf(&b, "✅ الرصيد المتبقي: %d\n", sub.RemainingAlerts())
	}
	b.WriteString("\n")
	b.WriteString("💡 نصيحة: تأكد من تحديث مخزونك باستمرار لضمان دقة التنبيهات.\n")

	return models.Message{Kind: KindWeekly, Subject: "التقرير الأسبوعي", Text: b.String()}
}

// Monthly ежемесячный отчёт за месяц now.
func Monthly(sub *models.Subscription, now time.Time) models.Message {
	now = now.UTC()
	var b strings.Builder
	b.WriteString("📅 التقرير الشهري\n")
	fmt.Fprintf(&b, "🗓️ الشهر: %s %d\n", period.MonthName(now.Month()), now.Year())
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "🔔 إجمالي التنبيهات المرسلة: %d\n", sub.AlertsSentThisMonth)
	b.WriteString("\n")
	b.WriteString("🚀 نتمنى لك شهراً مليئاً بالمبيعات!\n")

	return models.Message{Kind: KindMonthly, Subject: "التقرير الشهري", Text: b.String()}
}

func limit(sub *models.Subscription) string {
	if sub.IsUnlimited() {
		return "غير محدود"
	}
	return strconv.Itoa(sub.MaxAlertsPerMonth)
}
