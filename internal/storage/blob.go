package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound blob 不存在或已過期。呼叫端應視為正常情況處理，不需告警。
var ErrNotFound = errors.New("blob not found")

// 常用 metadata key，沿用既有訊息格式
const (
	MetaUploadedBy      = "uploaded_by"
	MetaUploadTime      = "upload_time"
	MetaOriginalVideoID = "original_video_id"
)

// PutOptions definition put blob options
type PutOptions struct {
	ContentType string
	Filename    string
	Metadata    map[string]string
	// DedupKey 若非空，同一個 key 最多只會有一個 blob，
	// 搭配 FindByDedupKey 讓重複投遞的 job 可以重用既有結果
	DedupKey string
}

// Object definition blob content and metadata
type Object struct {
	ID          string
	Data        []byte
	ContentType string
	Filename    string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// BlobStore 單一物件類別的儲存。TTL 是 store 實例本身的屬性，
// 每個類別（video / audio）各自建立一個 store。
type BlobStore interface {
	// Put 寫入內容並回傳 store 配發的唯一 id。blob 寫入後不可變更。
	Put(ctx context.Context, r io.Reader, opt PutOptions) (string, error)
	// Get 取回內容與 metadata，找不到或已過期回傳 ErrNotFound
	Get(ctx context.Context, id string) (*Object, error)
	// FindByDedupKey 依 dedup key 查詢既有 blob id，找不到回傳 ErrNotFound
	FindByDedupKey(ctx context.Context, key string) (string, error)
}

// expired 判斷是否超出存活時間，ttl = 0 表示永久保存
func expired(createdAt time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(createdAt) > ttl
}
