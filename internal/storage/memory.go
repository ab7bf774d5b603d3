package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore 記憶體版 BlobStore，TTL 到期由 ttlcache 的 janitor 自動回收。
// 測試與本機開發使用。
type MemoryStore struct {
	cache *ttlcache.Cache[string, *Object]

	mu    sync.Mutex
	dedup map[string]string // dedup key -> blob id
}

// NewMemoryStore create a MemoryStore, ttl = 0 表示永久保存
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	opts := []ttlcache.Option[string, *Object]{
		// Get 不可延長存活時間，否則輪詢會讓 blob 永不過期
		ttlcache.WithDisableTouchOnHit[string, *Object](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *Object](ttl))
	}

	s := &MemoryStore{
		cache: ttlcache.New(opts...),
		dedup: map[string]string{},
	}

	// 過期淘汰時一併移除 dedup 索引
	s.cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Object]) {
		obj := item.Value()
		if obj == nil {
			return
		}
		if key, ok := obj.Metadata["dedup_key"]; ok {
			s.mu.Lock()
			delete(s.dedup, key)
			s.mu.Unlock()
		}
	})

	// janitor 擔任背景回收器
	go s.cache.Start()

	return s
}

// Put 寫入內容並回傳新的 uuid
func (s *MemoryStore) Put(ctx context.Context, r io.Reader, opt PutOptions) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	meta := map[string]string{}
	for k, v := range opt.Metadata {
		meta[k] = v
	}
	if opt.DedupKey != "" {
		meta["dedup_key"] = opt.DedupKey
	}

	obj := &Object{
		ID:          uuid.NewString(),
		Data:        data,
		ContentType: opt.ContentType,
		Filename:    opt.Filename,
		Metadata:    meta,
		CreatedAt:   time.Now(),
	}

	s.cache.Set(obj.ID, obj, ttlcache.DefaultTTL)

	if opt.DedupKey != "" {
		s.mu.Lock()
		s.dedup[opt.DedupKey] = obj.ID
		s.mu.Unlock()
	}

	return obj.ID, nil
}

// Get 取回內容，過期的 item ttlcache 會直接視為不存在
func (s *MemoryStore) Get(ctx context.Context, id string) (*Object, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// FindByDedupKey 依 dedup key 查詢既有 blob id
func (s *MemoryStore) FindByDedupKey(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	id, ok := s.dedup[key]
	s.mu.Unlock()

	if !ok {
		return "", ErrNotFound
	}
	// blob 可能已過期但索引還沒被 eviction callback 清掉
	if s.cache.Get(id) == nil {
		return "", ErrNotFound
	}
	return id, nil
}

// Close 停止背景回收器
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
