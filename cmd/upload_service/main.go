package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"media_transcode_service/internal/queue"
	"media_transcode_service/internal/storage"
	transcodedomain "media_transcode_service/internal/transcode/domain"
	"media_transcode_service/internal/upload/api/handlers"
	"media_transcode_service/internal/upload/api/router"
	"media_transcode_service/internal/upload/app"
	"media_transcode_service/pkg/config"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
	testtool "media_transcode_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.UploadService, config.EnvConfig.UploadServiceLogPath)
	if config.IsLocal() {
		logger.Log.SetDebugMode(true)
	}
	testtool.StartPprof()

	cfg := config.LoadConfig[config.Upload](config.EnvConfig.UploadService, config.EnvConfig.UploadServiceYAMLPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 初始化影片 blob store（依設定選擇後端）
	videoStore, err := newVideoStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("初始化 blob store 失敗", zap.Error(err))
	}

	// 2. 連線 RabbitMQ 並宣告轉碼佇列
	rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    rabbitURL,
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
	})
	if err != nil {
		log.Fatalf("RabbitMQ 連線失敗: %v", err)
	}
	defer conn.Close()

	rabbitChannel, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
	if err != nil {
		log.Fatalf("取得 RabbitMQ Channel 失敗: %v", err)
	}
	defer rabbitChannel.Close()

	queueName := cfg.RabbitMQ.QueueName
	if queueName == "" {
		queueName = transcodedomain.QueueName
	}
	jobQueue, err := queue.NewRabbitQueue(rabbitChannel, queueName, 0)
	if err != nil {
		log.Fatalf("初始化轉碼佇列失敗: %v", err)
	}

	// 3. 建立 usecase 與 Fiber 應用
	usecase := app.NewUploadUseCase(videoStore, jobQueue)
	uploadHandler := handlers.NewUploadHandler(usecase)

	r := fiber.New(fiber.Config{
		BodyLimit: 512 * 1024 * 1024, // 影片上傳上限
	})
	router.RegisterRoutes(r, uploadHandler)

	logger.Log.Info(fmt.Sprintf("UploadService listening on : %s", cfg.Port))
	if err := r.Listen(cfg.IP + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

// newVideoStore 依設定建立影片類別的 blob store
func newVideoStore(ctx context.Context, cfg config.Upload) (storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStore(cfg.Storage.VideoTTL), nil

	case "minio":
		client, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: cfg.MinIO.RetryInterval,
		})
		if err != nil {
			return nil, err
		}
		if err := database.EnsureBucket(ctx, client, cfg.MinIO.VideoBucket); err != nil {
			return nil, err
		}
		return storage.NewMinioStore(ctx, client, cfg.MinIO.VideoBucket, cfg.Storage.VideoTTL)

	default: // gridfs
		mongoURL := fmt.Sprintf("mongodb://%s:%d", cfg.Mongo.Host, cfg.Mongo.Port)
		db, err := database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    mongoURL,
			RetryCount:    cfg.Mongo.RetryCount,
			RetryInterval: time.Duration(cfg.Mongo.RetryInterval) * time.Second,
		}, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewGridFSStore(db.Database, "videos", cfg.Storage.VideoTTL)
		if err != nil {
			return nil, err
		}
		store.StartReaper(ctx, cfg.Storage.ReapInterval)
		return store, nil
	}
}
