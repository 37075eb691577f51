// Package notifier fans out best-effort notifications. Every failure
// here is logged, counted and swallowed: a broken broker or a closed
// websocket must never fail the operation that triggered the
// notification.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
)

// Event is the payload published to the notification topic and pushed
// over the websocket hub.
type Event struct {
	RequestID string            `json:"request_id"`
	OwnerID   string            `json:"owner_id"`
	EventType string            `json:"event_type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Pusher delivers an event to a connected user in-process; the ws hub
// implements it.
type Pusher interface {
	PushToUser(userID string, event interface{})
}

// Writer is the broker surface we need from kafka-go.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Notifier struct {
	writer  Writer
	pusher  Pusher
	metrics *observability.Metrics
	logger  *zap.Logger
}

func New(writer Writer, pusher Pusher, metrics *observability.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{writer: writer, pusher: pusher, metrics: metrics, logger: logger}
}

// NewKafkaWriter builds the default writer for the notification topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// Notify publishes an event for one user. Errors are swallowed.
func (n *Notifier) Notify(ctx context.Context, userID, eventType, title, body string, payload map[string]string) {
	ev := Event{
		RequestID: uuid.New().String(),
		OwnerID:   userID,
		EventType: eventType,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if n.pusher != nil {
		n.pusher.PushToUser(userID, map[string]interface{}{
			"type": "notification",
			"data": ev,
		})
	}

	if n.writer == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("notification encode failed", zap.Error(err))
		n.metrics.IncrNotificationFailure()
		return
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: value,
	}); err != nil {
		n.logger.Warn("notification publish failed",
			zap.String("user_id", userID),
			zap.String("event_type", eventType),
			zap.Error(err))
		n.metrics.IncrNotificationFailure()
	}
}

// NotifyMany fans one event out to several users.
func (n *Notifier) NotifyMany(ctx context.Context, userIDs []string, eventType, title, body string, payload map[string]string) {
	seen := make(map[string]bool, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		n.Notify(ctx, uid, eventType, title, body, payload)
	}
}
