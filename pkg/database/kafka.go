package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry 先連線 topic 的 leader 確認 broker 可達，再建立 Writer。
// 探測不發送任何訊息，topic 裡只會有正式的事件。
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.DialLeader(context.Background(), "tcp", k.Brokers[0], k.Topic, 0)
		if err == nil {
			conn.Close()
			log.Printf("Kafka 連線驗證成功 (嘗試 %d 次)", attempt)
			return kafka.NewWriter(kafka.WriterConfig{
				Brokers:  k.Brokers,
				Topic:    k.Topic,
				Balancer: &kafka.LeastBytes{},
			}), nil
		}

		log.Printf("Kafka 連線驗證失敗 (嘗試 %d/%d): %v", attempt, k.RetryCount, err)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法連線 Kafka，經過 %d 次嘗試: %v", k.RetryCount, err)
}
