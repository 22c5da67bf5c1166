package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mmeshcher/imageshop/internal/model"
)

// Message формат события в топике.
type Message struct {
	OrderID    string    `json:"orderId"`
	UserID     int64     `json:"userId"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amountMinor"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

// KafkaPublisher публикует события в Kafka с идентификатором заказа в качестве ключа.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// ParseBrokers разбирает список брокеров через запятую.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaPublisher создаёт публикатор для топика topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish отправляет пачку событий одним вызовом.
func (p *KafkaPublisher) Publish(ctx context.Context, batch []model.OrderEvent) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, e := range batch {
		msg, err := EncodeEvent(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	return nil
}

// Close закрывает соединения с брокерами.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeEvent переводит событие outbox в сообщение Kafka.
func EncodeEvent(e model.OrderEvent) (kafka.Message, error) {
	data, err := json.Marshal(Message{
		OrderID:    e.OrderID.String(),
		UserID:     e.UserID,
		Status:     string(e.Status),
		Amount:     e.Amount,
		Currency:   e.Currency,
		OccurredAt: e.CreatedAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %d: %w", e.ID, err)
	}

	return kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: data,
		Time:  e.CreatedAt,
	}, nil
}
