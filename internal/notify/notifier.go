// Package notify publishes failed automation events to an AMQP exchange so
// an external alerting consumer can pick them up. The publisher is
// best-effort: a broker outage never blocks or fails an ingest.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/autogram/autogram/internal/activity"
)

// Notifier holds an AMQP connection and the topic exchange failures are
// published to.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// New dials the broker and declares the exchange.
func New(url, exchange string) (*Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Notifier{conn: conn, channel: ch, exchange: exchange}, nil
}

// Close releases the channel and connection.
func (n *Notifier) Close() error {
	if err := n.channel.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}

func (n *Notifier) publish(ctx context.Context, routingKey string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to marshal notification")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish notification")
	}
}

// NotifyCommentFailure publishes a failed comment reply attempt.
func (n *Notifier) NotifyCommentFailure(ctx context.Context, e activity.CommentEvent) {
	n.publish(ctx, "comment.failed", e)
}

// NotifyDMFailure publishes a failed DM send attempt.
func (n *Notifier) NotifyDMFailure(ctx context.Context, e activity.DMEvent) {
	n.publish(ctx, "dm.failed", e)
}
