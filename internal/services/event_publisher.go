// internal/services/event_publisher.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/provenly/ipvault-backend/internal/config"
)

// Purchase and asset lifecycle event types.
const (
	EventPurchaseCreated   = "license.purchase.created"
	EventPurchaseConfirmed = "license.purchase.confirmed"
	EventPurchaseFailed    = "license.purchase.failed"
	EventAssetRegistered   = "asset.registered"
)

// EventPublisher fans out lifecycle events to downstream consumers
// (indexers, notification workers). Publishing is best-effort: callers
// log failures and move on.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

type KafkaEventPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

func NewKafkaEventPublisher(cfg config.KafkaConfig) (*KafkaEventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: map[string]string{
			EventPurchaseCreated:   cfg.PurchaseEventTopic,
			EventPurchaseConfirmed: cfg.PurchaseEventTopic,
			EventPurchaseFailed:    cfg.PurchaseEventTopic,
			EventAssetRegistered:   cfg.AssetEventTopic,
		},
	}, nil
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	topic := eventType
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		topic = mapped
	}

	envelope := map[string]interface{}{
		"event_type":  eventType,
		"occurred_at": time.Now().UTC(),
		"payload":     payload,
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher is used when no brokers are configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(_ context.Context, eventType, key string, _ interface{}) error {
	logrus.WithFields(logrus.Fields{"event_type": eventType, "key": key}).
		Debug("Event publishing disabled; dropping event")
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
