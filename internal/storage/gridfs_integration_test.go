package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
	testtool "media_transcode_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// **測試用的容器**
var mongoContainer testcontainers.Container
var mongoDB *database.MongoDB

// **TestMain 初始化測試環境**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	if os.Getenv("SKIP_CONTAINER_TESTS") == "" {
		// **啟動 MongoDB**
		container, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
			Image:        "mongo:latest",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		})
		if err != nil {
			log.Fatalf("❌ Failed to start MongoDB container: %v", err)
		}
		mongoContainer = container
		fmt.Printf("✅ MongoDB running at %s:%s\n", mongoHost, mongoPort)

		// **初始化 MongoDB**
		mongoDB, err = database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
			RetryCount:    5,
			RetryInterval: 5,
		}, "test_blob_db")
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
	}

	code := m.Run()

	if mongoDB != nil {
		_ = mongoDB.Close(ctx)
	}
	if mongoContainer != nil {
		_ = mongoContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func requireMongo(t *testing.T) {
	t.Helper()
	if mongoDB == nil {
		t.Skip("SKIP_CONTAINER_TESTS is set")
	}
}

func TestGridFSStorePutGet(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	store, err := NewGridFSStore(mongoDB.Database, "it_videos", 0)
	assert.NoError(t, err)

	t.Run("寫入後能取回內容與中繼資料", func(t *testing.T) {
		id, err := store.Put(ctx, bytes.NewReader([]byte("video payload")), PutOptions{
			ContentType: "video/mp4",
			Filename:    "clip.mp4",
			Metadata: map[string]string{
				MetaUploadedBy: "u1",
				MetaUploadTime: time.Now().UTC().Format(time.RFC3339),
			},
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, id)

		obj, err := store.Get(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, []byte("video payload"), obj.Data)
		assert.Equal(t, "video/mp4", obj.ContentType)
		assert.Equal(t, "clip.mp4", obj.Filename)
		assert.Equal(t, "u1", obj.Metadata[MetaUploadedBy])
	})

	t.Run("不存在的 id 回傳 ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "0123456789abcdef01234567")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("格式錯誤的 id 回傳 ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "not-an-object-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGridFSStoreDedup(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	store, err := NewGridFSStore(mongoDB.Database, "it_audio", 0)
	assert.NoError(t, err)

	t.Run("dedup key 能找回既有物件", func(t *testing.T) {
		id, err := store.Put(ctx, bytes.NewReader([]byte("audio payload")), PutOptions{
			ContentType: "audio/mpeg",
			DedupKey:    "video-abc",
		})
		assert.NoError(t, err)

		found, err := store.FindByDedupKey(ctx, "video-abc")
		assert.NoError(t, err)
		assert.Equal(t, id, found)
	})

	t.Run("未知的 dedup key 回傳 ErrNotFound", func(t *testing.T) {
		_, err := store.FindByDedupKey(ctx, "video-unknown")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGridFSStoreExpiry(t *testing.T) {
	requireMongo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// TTL 設很短，驗證過期檢查與 reaper 回收
	store, err := NewGridFSStore(mongoDB.Database, "it_expiry", 500*time.Millisecond)
	assert.NoError(t, err)
	store.StartReaper(ctx, 200*time.Millisecond)

	id, err := store.Put(ctx, bytes.NewReader([]byte("short lived")), PutOptions{
		ContentType: "video/mp4",
		DedupKey:    "video-expiry",
	})
	assert.NoError(t, err)

	// 過期前取得沒問題
	_, err = store.Get(ctx, id)
	assert.NoError(t, err)

	// 過期後 Get 與 dedup 查詢都要回 ErrNotFound
	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, id)
		return errors.Is(err, ErrNotFound)
	}, 5*time.Second, 100*time.Millisecond)
	_, err = store.FindByDedupKey(ctx, "video-expiry")
	assert.ErrorIs(t, err, ErrNotFound)
}
