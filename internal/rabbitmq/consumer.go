package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
)

// ErrDiscard сообщает потребителю, что сообщение нельзя обработать и повторять его не нужно.
var ErrDiscard = errors.New("discard message")

// Consumer часть amqp.Channel для чтения очереди.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerMessage читает очередь и передаёт тела сообщений handler, обрабатывая не больше
// concurrency сообщений одновременно. Успех подтверждается ack, ErrDiscard отклоняет
// сообщение без возврата, прочие ошибки возвращают его в очередь.
// Возвращаемый канал закрывается после остановки чтения и завершения всех обработчиков.
func ConsumerMessage(ctx context.Context, ch Consumer, queueName string, concurrency int,
	handler func(context.Context, []byte) error, log *slog.Logger) (<-chan struct{}, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan struct{})
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup
	go func() {
		defer close(done)
		defer wg.Wait()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					settle(ctx, d, handler, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}

func settle(ctx context.Context, d amqp.Delivery, handler func(context.Context, []byte) error, log *slog.Logger) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrDiscard):
		log.Warn("discarding message", slog.String("message_id", d.MessageId), sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("failed to handle message, requeueing", slog.String("message_id", d.MessageId), sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
