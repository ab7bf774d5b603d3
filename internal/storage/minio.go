package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// MinioStore 以 MinIO 為後端的 BlobStore，一個 bucket 對應一個物件類別。
// TTL 透過 bucket 的 ILM 規則由 MinIO 自行回收（天為單位），
// Get 端另做秒級的過期判斷，避免等不到 ILM 掃描。
type MinioStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioStore create a MinioStore and apply the expiry rule
func NewMinioStore(ctx context.Context, client *minio.Client, bucket string, ttl time.Duration) (*MinioStore, error) {
	s := &MinioStore{
		client: client,
		bucket: bucket,
		ttl:    ttl,
	}

	if ttl > 0 {
		days := int(ttl / (24 * time.Hour))
		if ttl%(24*time.Hour) != 0 {
			days++ // ILM 只支援天，無條件進位
		}
		cfg := lifecycle.NewConfiguration()
		cfg.Rules = []lifecycle.Rule{
			{
				ID:     "blob-expiry",
				Status: "Enabled",
				Expiration: lifecycle.Expiration{
					Days: lifecycle.ExpirationDays(days),
				},
			},
		}
		if err := client.SetBucketLifecycle(ctx, bucket, cfg); err != nil {
			return nil, fmt.Errorf("設定 bucket [%s] 過期規則失敗: %w", bucket, err)
		}
	}

	return s, nil
}

// Put 寫入物件並回傳新的 uuid，dedup key 另外寫一筆指標物件供查詢
func (s *MinioStore) Put(ctx context.Context, r io.Reader, opt PutOptions) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	meta := map[string]string{
		"filename": opt.Filename,
	}
	for k, v := range opt.Metadata {
		meta[k] = v
	}

	_, err = s.client.PutObject(ctx, s.bucket, id, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  opt.ContentType,
			UserMetadata: meta,
		})
	if err != nil {
		return "", fmt.Errorf("MinIO 寫入失敗: %w", err)
	}

	if opt.DedupKey != "" {
		_, err = s.client.PutObject(ctx, s.bucket, dedupKeyName(opt.DedupKey),
			strings.NewReader(id), int64(len(id)),
			minio.PutObjectOptions{ContentType: "text/plain"})
		if err != nil {
			return "", fmt.Errorf("MinIO 寫入 dedup 指標失敗: %w", err)
		}
	}

	return id, nil
}

// Get 取回物件內容與 metadata
func (s *MinioStore) Get(ctx context.Context, id string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("MinIO 取得物件失敗: %w", err)
	}
	defer obj.Close()

	// GetObject 是惰性的，錯誤要等 Stat / Read 才會出現
	info, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("MinIO 讀取物件資訊失敗: %w", err)
	}

	if expired(info.LastModified, s.ttl) {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("MinIO 讀取內容失敗: %w", err)
	}

	out := &Object{
		ID:          id,
		Data:        data,
		ContentType: info.ContentType,
		Metadata:    map[string]string{},
		CreatedAt:   info.LastModified,
	}
	for k, v := range info.UserMetadata {
		key := strings.ToLower(k)
		if key == "filename" {
			out.Filename = v
			continue
		}
		out.Metadata[key] = v
	}

	return out, nil
}

// FindByDedupKey 讀取 dedup 指標物件取得既有 blob id
func (s *MinioStore) FindByDedupKey(ctx context.Context, key string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, dedupKeyName(key), minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("MinIO 取得 dedup 指標失敗: %w", err)
	}
	defer obj.Close()

	id, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("MinIO 讀取 dedup 指標失敗: %w", err)
	}

	// 指標還在但目標已被 ILM 回收或已過期時，一樣回報不存在
	info, err := s.client.StatObject(ctx, s.bucket, string(id), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("MinIO 驗證 dedup 目標失敗: %w", err)
	}
	if expired(info.LastModified, s.ttl) {
		return "", ErrNotFound
	}

	return string(id), nil
}

func dedupKeyName(key string) string {
	return "dedup/" + key
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
