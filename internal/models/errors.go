package models

import "errors"

var (
	// ErrMalformedEvent событие нельзя связать ни с одним мерчантом.
	ErrMalformedEvent = errors.New("malformed event: merchant id is missing")
	// ErrMerchantNotFound мерчант не установлен.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrSubscriptionNotFound у мерчанта нет подписки.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrQuotaExceeded месячный лимит тревог исчерпан.
	ErrQuotaExceeded = errors.New("alert quota exceeded")
	// ErrInvalidRecipient идентификатор получателя не подходит каналу.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrRecipientLimit тариф не позволяет привязать ещё одного получателя.
	ErrRecipientLimit = errors.New("recipient limit reached")
)
