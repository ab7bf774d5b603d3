package queue

import "context"

// Delivery 一筆已投遞但尚未確認的 job。
// 在 Ack 之前 broker 不會把同一筆投遞交給其他 worker。
type Delivery interface {
	Body() []byte
	// Ack 確認處理完成，job 從佇列移除。必須在副作用落地後才呼叫。
	Ack() error
	// Nack 拒絕這筆投遞，requeue = true 時重新排入等待重送
	Nack(requeue bool) error
}

// JobQueue 持久化、at-least-once 的工作佇列
type JobQueue interface {
	// Publish 將 job 持久化後才回傳成功，broker 無法寫入時回傳錯誤
	Publish(ctx context.Context, body []byte) error
	// Consume 回傳一條共享的投遞 channel，多個 worker 可同時讀取，
	// 每筆投遞只會被其中一個收到
	Consume(ctx context.Context) (<-chan Delivery, error)
}
