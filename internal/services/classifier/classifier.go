// Package classifier разбирает события платформы и принимает решение о тревоге.
// Пакет не обращается к хранилищу и не имеет побочных эффектов.
package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// UnknownProduct подставляется, когда в событии нет названия товара.
const UnknownProduct = "منتج غير معروف"

// Kind вид события.
type Kind string

const (
	KindIgnored               Kind = "ignored"
	KindStockUpdate           Kind = "stock-update"
	KindSubscriptionActivated Kind = "subscription-activated"
	KindSubscriptionRenewed   Kind = "subscription-renewed"
	KindSubscriptionCancelled Kind = "subscription-cancelled"
	KindAppUninstalled        Kind = "app-uninstalled"
	KindMerchantAuthorized    Kind = "merchant-authorized"
)

var kinds = map[string]Kind{
	"product.updated":           KindStockUpdate,
	"product.quantity.low":      KindStockUpdate,
	"product.quantity.updated":  KindStockUpdate,
	"app.subscription.started":  KindSubscriptionActivated,
	"app.subscription.renewed":  KindSubscriptionRenewed,
	"app.subscription.canceled": KindSubscriptionCancelled,
	"app.subscription.expired":  KindSubscriptionCancelled,
	"app.uninstalled":           KindAppUninstalled,
	"app.store.authorize":       KindMerchantAuthorized,
}

// KindOf возвращает вид события по его имени.
func KindOf(event string) Kind {
	if k, ok := kinds[event]; ok {
		return k
	}
	return KindIgnored
}

// Stock состояние товара из события обновления остатка.
type Stock struct {
	ProductID   int64
	ProductName string
	SKU         string
	Quantity    int
}

// Event результат классификации.
type Event struct {
	Kind       Kind
	Name       string
	MerchantID int64
	// Stock заполнен для KindStockUpdate.
	Stock *Stock
	// Plan заполнен для KindSubscriptionActivated.
	Plan models.Plan
	// Authorize заполнен для KindMerchantAuthorized.
	Authorize *models.AuthorizeData
}

// Classify классифицирует событие. Нераспознанные события получают KindIgnored без ошибки,
// даже без мерчанта. Для распознанного события без мерчанта возвращается models.ErrMalformedEvent.
func Classify(env models.Envelope) (Event, error) {
	const op = "classifier.Classify"
	kind := KindOf(env.Event)
	if kind == KindIgnored {
		return Event{Kind: KindIgnored, Name: env.Event, MerchantID: env.MerchantID}, nil
	}
	if env.MerchantID == 0 {
		return Event{Kind: KindIgnored, Name: env.Event}, fmt.Errorf("%s: %w", op, models.ErrMalformedEvent)
	}

	ev := Event{Kind: kind, Name: env.Event, MerchantID: env.MerchantID}

	switch ev.Kind {
	case KindStockUpdate:
		var data models.ProductData
		decode(env.Data, &data)
		ev.Stock = &Stock{
			ProductID:   data.ID,
			ProductName: data.Name,
			SKU:         data.SKU,
		}
		if data.Quantity != nil {
			ev.Stock.Quantity = *data.Quantity
		}
		if ev.Stock.ProductName == "" {
			ev.Stock.ProductName = UnknownProduct
		}
	case KindSubscriptionActivated:
		var data models.SubscriptionData
		decode(env.Data, &data)
		ev.Plan = models.ParsePlan(data.PlanName)
	case KindMerchantAuthorized:
		var data models.AuthorizeData
		decode(env.Data, &data)
		ev.Authorize = &data
	}
	return ev, nil
}

// decode разбирает полезную нагрузку. Повреждённые или отсутствующие поля
// оставляют нулевые значения.
func decode(raw json.RawMessage, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// ShouldAlert тревога срабатывает, когда остаток не больше порога.
func ShouldAlert(quantity, threshold int) bool {
	return quantity <= threshold
}

// Decide строит тревогу для события остатка с порогом мерчанта.
// Второе значение false, если событие не про остаток или остаток выше порога.
func Decide(ev Event, m *models.Merchant) (*models.AlertEvent, bool) {
	if ev.Kind != KindStockUpdate || ev.Stock == nil || m == nil {
		return nil, false
	}
	if !ShouldAlert(ev.Stock.Quantity, m.AlertThreshold) {
		return nil, false
	}
	return &models.AlertEvent{
		MerchantID:  ev.MerchantID,
		ProductID:   ev.Stock.ProductID,
		ProductName: ev.Stock.ProductName,
		SKU:         ev.Stock.SKU,
		Quantity:    ev.Stock.Quantity,
		Threshold:   m.AlertThreshold,
	}, true
}
