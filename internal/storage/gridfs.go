package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"media_transcode_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// GridFSStore 以 MongoDB GridFS 為後端的 BlobStore，一個 bucket 對應一個物件類別
type GridFSStore struct {
	bucket *gridfs.Bucket
	files  *mongo.Collection
	ttl    time.Duration
}

// NewGridFSStore create a GridFSStore
// bucketName 例如 "videos" / "audio"，ttl = 0 表示該類別永久保存
func NewGridFSStore(db *mongo.Database, bucketName string, ttl time.Duration) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("建立 GridFS bucket [%s] 失敗: %w", bucketName, err)
	}

	return &GridFSStore{
		bucket: bucket,
		files:  db.Collection(bucketName + ".files"),
		ttl:    ttl,
	}, nil
}

// Put 寫入檔案內容與 metadata，回傳新的 ObjectID
func (s *GridFSStore) Put(ctx context.Context, r io.Reader, opt PutOptions) (string, error) {
	meta := bson.M{
		"content_type": opt.ContentType,
	}
	for k, v := range opt.Metadata {
		meta[k] = v
	}
	if opt.DedupKey != "" {
		meta["dedup_key"] = opt.DedupKey
	}

	id, err := s.bucket.UploadFromStream(opt.Filename, r, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return "", fmt.Errorf("GridFS 寫入失敗: %w", err)
	}
	return id.Hex(), nil
}

// Get 取回檔案內容，找不到、id 不合法或已過期都回傳 ErrNotFound
func (s *GridFSStore) Get(ctx context.Context, id string) (*Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GridFS 讀取失敗: %w", err)
	}
	defer stream.Close()

	file := stream.GetFile()

	// 回收器尚未掃到的過期檔案一樣視為不存在
	if expired(file.UploadDate, s.ttl) {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("GridFS 讀取內容失敗: %w", err)
	}

	obj := &Object{
		ID:        id,
		Data:      data,
		Filename:  file.Name,
		Metadata:  map[string]string{},
		CreatedAt: file.UploadDate,
	}

	if len(file.Metadata) > 0 {
		var raw bson.M
		if err := bson.Unmarshal(file.Metadata, &raw); err == nil {
			for k, v := range raw {
				if str, ok := v.(string); ok {
					if k == "content_type" {
						obj.ContentType = str
						continue
					}
					obj.Metadata[k] = str
				}
			}
		}
	}

	return obj, nil
}

// FindByDedupKey 以 metadata.dedup_key 查詢既有 blob
func (s *GridFSStore) FindByDedupKey(ctx context.Context, key string) (string, error) {
	var doc struct {
		ID         primitive.ObjectID `bson:"_id"`
		UploadDate time.Time          `bson:"uploadDate"`
	}

	err := s.files.FindOne(ctx, bson.M{"metadata.dedup_key": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("GridFS dedup 查詢失敗: %w", err)
	}

	if expired(doc.UploadDate, s.ttl) {
		return "", ErrNotFound
	}
	return doc.ID.Hex(), nil
}

// StartReaper 啟動背景回收器，定期刪除超過 TTL 的檔案。
// 透過 bucket.Delete 一併清掉 chunks，直到 ctx 結束才停止。
func (s *GridFSStore) StartReaper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.reapExpired(ctx); err != nil {
					logger.Log.Errorf("GridFS 回收過期檔案失敗:", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *GridFSStore) reapExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-s.ttl)

	cur, err := s.files.Find(ctx, bson.M{"uploadDate": bson.M{"$lt": cutoff}})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		if err := s.bucket.Delete(doc.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			logger.Log.Error("刪除過期 blob 失敗",
				zap.String("blob_id", doc.ID.Hex()), zap.Error(err))
			continue
		}
		logger.Log.Debug("已回收過期 blob", zap.String("blob_id", doc.ID.Hex()))
	}
	return cur.Err()
}
