package app

import (
	"context"
	"encoding/json"
	"fmt"

	"media_transcode_service/internal/transcode/domain"

	"github.com/segmentio/kafka-go"
)

// Notifier 完成通知的邊界，實際寄送（email 等）由下游服務負責
type Notifier interface {
	NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error
}

// KafkaNotifier 把完成事件發到 Kafka topic 給通知服務消費
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier create a KafkaNotifier
func NewKafkaNotifier(writer *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// NotifyCompletion 發送完成事件，key 用 video id 讓同一部影片落在同一分區
func (n *KafkaNotifier) NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("完成事件序列化失敗: %w", err)
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.VideoID),
		Value: data,
	})
}

// NopNotifier 不做任何事，通知服務未設定時使用
type NopNotifier struct{}

// NotifyCompletion no-op
func (NopNotifier) NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error {
	return nil
}
