package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

const runEventType = "retrain.run.snapshot"

// RunPublisher sends retraining run snapshots to a durable queue.
type RunPublisher struct {
	conn      *amqp.Connection
	queueName string
	appID     string
}

func NewRunPublisher(conn *amqp.Connection, queueName, appID string) *RunPublisher {
	return &RunPublisher{
		conn:      conn,
		queueName: queueName,
		appID:     appID,
	}
}

func (p *RunPublisher) PublishRun(ctx context.Context, run model.RetrainRun) error {
	publishing, err := encodeRun(run, p.appID, time.Now())
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, "", p.queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish retrain run failed: %w", err)
	}
	return nil
}

func encodeRun(run model.RetrainRun, appID string, now time.Time) (amqp.Publishing, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal retrain run failed: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		Type:          runEventType,
		AppId:         appID,
		MessageId:     fmt.Sprintf("%s:%s", run.RunID, run.State),
		CorrelationId: run.RunID,
		Timestamp:     now,
		Body:          payload,
		DeliveryMode:  amqp.Persistent,
	}, nil
}

// DecodeRun is the inverse of the publisher's encoding.
func DecodeRun(body []byte) (model.RetrainRun, error) {
	var run model.RetrainRun
	if err := json.Unmarshal(body, &run); err != nil {
		return model.RetrainRun{}, fmt.Errorf("decode retrain run failed: %w", err)
	}
	if run.RunID == "" || run.State == "" {
		return model.RetrainRun{}, fmt.Errorf("decode retrain run failed: missing run_id or state")
	}
	return run, nil
}
