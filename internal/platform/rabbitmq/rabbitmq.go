package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dialTimeout = 5 * time.Second

// New dials the broker and proves it is usable by opening a channel.
func New(ctx context.Context, url, connectionName string) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	if connectionName != "" {
		props.SetClientConnectionName(connectionName)
	}

	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial:       amqp.DefaultDial(dialTimeout),
			Heartbeat:  10 * time.Second,
			Properties: props,
		})
		if err != nil {
			done <- result{err: fmt.Errorf("dial rabbitmq failed: %w", err)}
			return
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			done <- result{err: fmt.Errorf("open rabbitmq channel failed: %w", err)}
			return
		}
		_ = ch.Close()
		done <- result{conn: conn}
	}()

	checkCtx, cancel := context.WithTimeout(ctx, dialTimeout+time.Second)
	defer cancel()

	select {
	case <-checkCtx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("rabbitmq health check timeout: %w", checkCtx.Err())
	case res := <-done:
		return res.conn, res.err
	}
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return nil
}
