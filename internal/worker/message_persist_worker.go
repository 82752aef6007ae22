package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"qwery/internal/metrics"
	"qwery/internal/model"
	"qwery/internal/platform/rabbitmq"
)

// MessageStore is the write side the worker persists into.
type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
}

// MessagePersistWorker drains the persistence queue into the message store.
// Deliveries are acked only after the insert; message ids are assigned by the
// publisher so a redelivered message is inserted at most once.
type MessagePersistWorker struct {
	conn      *amqp.Connection
	repo      MessageStore
	queueName string
	logger    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMessagePersistWorker(conn *amqp.Connection, repo MessageStore, queueName string, logger zerolog.Logger) *MessagePersistWorker {
	return &MessagePersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *MessagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(32, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn().Msg("delivery channel closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info().Str("queue", w.queueName).Msg("message persist worker started")
	return nil
}

func (w *MessagePersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg model.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.logger.Error().Err(err).Str("message_id", d.MessageId).Msg("decode message failed")
		_ = d.Nack(false, false)
		return
	}

	if err := w.repo.Create(ctx, &msg); err != nil {
		w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("persist message failed")
		// A redelivered message that still fails is dropped.
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	metrics.MessagesPersisted.WithLabelValues("queue").Inc()
	_ = d.Ack(false)
}

func (w *MessagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
