// Package channel описывает общий контракт каналов уведомлений.
//
// Каждый канал сам решает, кому из мерчанта доставлять сообщение, и сам проверяет
// формат идентификатора получателя. Таймаут отправки ограничивает сам адаптер.
package channel

import (
	"context"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Channel канал доставки уведомлений.
type Channel interface {
	// Kind вид канала.
	Kind() models.Channel
	// Recipients получатели мерчанта в этом канале. Пустой список означает, что канал выключен.
	Recipients(m *models.Merchant) []string
	// Validate проверяет идентификатор получателя. Ошибка оборачивает models.ErrInvalidRecipient.
	Validate(recipient string) error
	// Send доставляет сообщение одному получателю.
	Send(ctx context.Context, recipient string, msg models.Message) error
}
