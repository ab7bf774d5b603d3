package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 佇列已關閉
var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue 行程內的 JobQueue，模擬 broker 的 at-least-once 行為：
// 每筆投遞同一時間只租給一個消費者，Nack(requeue) 會重新排到佇列頭。
// 測試與本機開發使用，訊息不落地。
type MemoryQueue struct {
	mu      sync.Mutex
	backlog [][]byte

	wake       chan struct{}
	deliveries chan Delivery
	closed     chan struct{}
	once       sync.Once
	closeOnce  sync.Once
}

// NewMemoryQueue create a MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		wake: make(chan struct{}, 1),
		// 無緩衝：送出即代表某個消費者取得這筆投遞的租約
		deliveries: make(chan Delivery),
		closed:     make(chan struct{}),
	}
}

// Publish 將 job 排入佇列
func (q *MemoryQueue) Publish(ctx context.Context, body []byte) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	q.mu.Lock()
	q.backlog = append(q.backlog, body)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Consume 回傳共享的投遞 channel，第一次呼叫時啟動派送迴圈
func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	q.once.Do(func() {
		go q.dispatch()
	})
	return q.deliveries, nil
}

// Close 停止派送，之後的 Publish 會失敗
func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Len 目前等待派送的 job 數（測試觀察用）
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) dispatch() {
	for {
		q.mu.Lock()
		var body []byte
		popped := false
		if len(q.backlog) > 0 {
			body = q.backlog[0]
			q.backlog = q.backlog[1:]
			popped = true
		}
		q.mu.Unlock()

		// body 可能是 nil 或空，不能拿內容判斷有沒有取到
		if !popped {
			select {
			case <-q.wake:
				continue
			case <-q.closed:
				close(q.deliveries)
				return
			}
		}

		select {
		case q.deliveries <- &memoryDelivery{q: q, body: body}:
		case <-q.closed:
			close(q.deliveries)
			return
		}
	}
}

type memoryDelivery struct {
	q    *MemoryQueue
	body []byte
	once sync.Once
}

func (d *memoryDelivery) Body() []byte { return d.body }

func (d *memoryDelivery) Ack() error {
	d.once.Do(func() {})
	return nil
}

func (d *memoryDelivery) Nack(requeue bool) error {
	d.once.Do(func() {
		if !requeue {
			return
		}
		d.q.mu.Lock()
		// 重新排到佇列頭，維持 FIFO 的 best effort
		d.q.backlog = append([][]byte{d.body}, d.q.backlog...)
		d.q.mu.Unlock()
		d.q.signal()
	})
	return nil
}
