package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 測試基本的 FIFO 投遞與 Ack
func TestMemoryQueuePublishConsume(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	assert.NoError(t, q.Publish(ctx, []byte("job-1")))
	assert.NoError(t, q.Publish(ctx, []byte("job-2")))

	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)

	d1 := receiveOne(t, deliveries)
	assert.Equal(t, "job-1", string(d1.Body()))
	assert.NoError(t, d1.Ack())

	d2 := receiveOne(t, deliveries)
	assert.Equal(t, "job-2", string(d2.Body()))
	assert.NoError(t, d2.Ack())

	assert.Equal(t, 0, q.Len())
}

// 測試 Nack(requeue) 會重新投遞同一筆 job
func TestMemoryQueueRedelivery(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	assert.NoError(t, q.Publish(ctx, []byte("job-1")))

	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)

	d := receiveOne(t, deliveries)
	assert.NoError(t, d.Nack(true))

	// 同一筆 job 要再次出現
	redelivered := receiveOne(t, deliveries)
	assert.Equal(t, "job-1", string(redelivered.Body()))
	assert.NoError(t, redelivered.Ack())

	// Ack 之後不會再投遞
	select {
	case d, ok := <-deliveries:
		if ok {
			t.Fatalf("不應該再收到投遞: %s", string(d.Body()))
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// 測試 Nack(requeue=false) 直接丟棄
func TestMemoryQueueDropOnNack(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	assert.NoError(t, q.Publish(ctx, []byte("job-1")))

	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)

	d := receiveOne(t, deliveries)
	assert.NoError(t, d.Nack(false))

	select {
	case d, ok := <-deliveries:
		if ok {
			t.Fatalf("丟棄的 job 不應該重新投遞: %s", string(d.Body()))
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// 兩個消費者搶同一筆 job，只有一個能拿到租約
func TestMemoryQueueExclusiveLease(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	assert.NoError(t, q.Publish(ctx, []byte("job-1")))

	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)

	var received int64
	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			select {
			case d, ok := <-deliveries:
				if ok {
					atomic.AddInt64(&received, 1)
					_ = d.Ack()
				}
			case <-done:
			}
		}()
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&received) == 1
	}, time.Second, 10*time.Millisecond)

	// 再等一下確認另一個消費者沒有拿到同一筆
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&received))
	close(done)
}

// 空的 body 一樣要投遞，不能被當成佇列已空而丟掉
func TestMemoryQueueEmptyBody(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	assert.NoError(t, q.Publish(ctx, nil))
	assert.NoError(t, q.Publish(ctx, []byte("job-1")))

	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)

	d1 := receiveOne(t, deliveries)
	assert.Empty(t, d1.Body())
	assert.NoError(t, d1.Ack())

	d2 := receiveOne(t, deliveries)
	assert.Equal(t, "job-1", string(d2.Body()))
	assert.NoError(t, d2.Ack())
}

// 關閉後不可再發布
func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue()
	q.Close()

	err := q.Publish(context.Background(), []byte("job-1"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func receiveOne(t *testing.T, deliveries <-chan Delivery) Delivery {
	t.Helper()
	select {
	case d, ok := <-deliveries:
		if !ok {
			t.Fatal("投遞 channel 已關閉")
		}
		return d
	case <-time.After(time.Second):
		t.Fatal("等不到投遞")
	}
	return nil
}
