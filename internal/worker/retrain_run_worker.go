package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/rabbitmq"
)

type RunStore interface {
	Upsert(ctx context.Context, run *model.RetrainRun) error
}

// RetrainRunWorker drains run snapshots from the queue into the audit store.
type RetrainRunWorker struct {
	conn      *amqp.Connection
	store     RunStore
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRetrainRunWorker(conn *amqp.Connection, store RunStore, queueName string, log *logger.Logger) *RetrainRunWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &RetrainRunWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.With("worker", "retrain_runs"),
	}
}

func (w *RetrainRunWorker) Start(ctx context.Context) error {
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

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
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
					w.log.Warn("delivery channel closed")
					return
				}
				switch w.handle(workerCtx, d.Body, d.Redelivered) {
				case ack:
					_ = d.Ack(false)
				case requeue:
					_ = d.Nack(false, true)
				default:
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	return nil
}

type outcome int

const (
	ack outcome = iota
	requeue
	drop
)

// handle persists one snapshot. A store failure is retried once through the
// broker; undecodable messages are dropped.
func (w *RetrainRunWorker) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	run, err := rabbitmq.DecodeRun(body)
	if err != nil {
		w.log.Error("worker decode retrain run failed", "err", err)
		return drop
	}
	if err := w.store.Upsert(ctx, &run); err != nil {
		w.log.Error("worker persist retrain run failed", "run_id", run.RunID, "state", run.State, "err", err)
		if redelivered {
			return drop
		}
		return requeue
	}
	w.log.Debug("retrain run persisted", "run_id", run.RunID, "state", run.State)
	return ack
}

func (w *RetrainRunWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
