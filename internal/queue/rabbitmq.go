package queue

import (
	"context"
	"fmt"
	"sync"

	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"

	"github.com/streadway/amqp"
)

// RabbitQueue 以 RabbitMQ 為後端的 JobQueue
type RabbitQueue struct {
	channel *amqp.Channel
	name    string

	// confirm channel 是依序回覆的，發送與等待必須成對進行
	mu       sync.Mutex
	confirms <-chan amqp.Confirmation
}

// NewRabbitQueue create a RabbitQueue
// 宣告 durable queue 並設定 prefetch，channel 切到 confirm 模式，
// 訊息以 persistent 模式發送
func NewRabbitQueue(channel *amqp.Channel, name string, prefetch int) (*RabbitQueue, error) {
	if _, err := channel.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // arguments
	); err != nil {
		return nil, fmt.Errorf("Queue Declare failed: %w", err)
	}

	if prefetch > 0 {
		if err := channel.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("Qos 設定失敗: %w", err)
		}
	}

	if err := channel.Confirm(false); err != nil {
		return nil, fmt.Errorf("Confirm 模式設定失敗: %w", err)
	}
	confirms := channel.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &RabbitQueue{channel: channel, name: name, confirms: confirms}, nil
}

// Publish 以 persistent 模式發送訊息並等待 broker 的 publisher confirm，
// broker 確認落地前不會回傳成功
func (q *RabbitQueue) Publish(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.channel.Publish(
		"",     // 預設 exchange
		q.name, // queue 名稱
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: publish 失敗: %v", errprocess.ErrUnavailable, err)
	}

	return awaitConfirm(ctx, q.confirms)
}

// awaitConfirm 等待 broker 的 confirm 回覆。
// nack、channel 關閉或 ctx 結束都視為這筆訊息沒有落地。
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation) error {
	select {
	case c, ok := <-confirms:
		if !ok {
			return fmt.Errorf("%w: confirm channel 已關閉", errprocess.ErrUnavailable)
		}
		if !c.Ack {
			return fmt.Errorf("%w: broker 回報 nack (deliveryTag=%d)", errprocess.ErrUnavailable, c.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: 等待 broker confirm 失敗: %v", errprocess.ErrUnavailable, ctx.Err())
	}
}

// Consume 開始消費，autoAck 關閉，由 worker 在副作用落地後手動 Ack
func (q *RabbitQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := q.channel.Consume(
		q.name, // queue
		"",     // consumer tag，留空由系統分配
		false,  // autoAck 為 false，使用手動確認
		false,  // exclusive
		false,  // noLocal
		false,  // noWait
		nil,    // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("%w: consume 失敗: %v", errprocess.ErrUnavailable, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					logger.Log.Warn("RabbitMQ 消費 channel 已關閉")
					return
				}
				select {
				case out <- &rabbitDelivery{d: d}:
				case <-ctx.Done():
					// 未轉交的訊息不做 Ack，broker 會重新投遞
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

type rabbitDelivery struct {
	d amqp.Delivery
}

func (r *rabbitDelivery) Body() []byte { return r.d.Body }

func (r *rabbitDelivery) Ack() error { return r.d.Ack(false) }

func (r *rabbitDelivery) Nack(requeue bool) error { return r.d.Nack(false, requeue) }
