package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media_transcode_service/internal/queue"
	"media_transcode_service/internal/storage"
	"media_transcode_service/internal/transcode/app"
	transcodedomain "media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/config"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
	testtool "media_transcode_service/pkg/test_tool"

	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ConvertorService, config.EnvConfig.ConvertorServiceLogPath)
	if config.IsLocal() {
		logger.Log.SetDebugMode(true)
	}
	testtool.StartPprof()

	cfg := config.LoadConfig[config.Convertor](config.EnvConfig.ConvertorService, config.EnvConfig.ConvertorServiceYAMLPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 初始化 blob store（影片讀取 / 音軌寫入，各自的 TTL 類別）
	videoStore, audioStore, err := newBlobStores(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("初始化 blob store 失敗", zap.Error(err))
	}

	// 2. 連線 RabbitMQ 並開始消費
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
	// prefetch 對齊 worker 數，避免單一行程囤積過多未確認訊息
	jobQueue, err := queue.NewRabbitQueue(rabbitChannel, queueName, cfg.Workers)
	if err != nil {
		log.Fatalf("初始化轉碼佇列失敗: %v", err)
	}

	// 3. 完成通知（Kafka 未設定時退化為 no-op）
	var notifier app.Notifier = app.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			log.Fatalf("Kafka Writer 建立失敗: %v", err)
		}
		defer kafkaWriter.Close()
		notifier = app.NewKafkaNotifier(kafkaWriter)
	}

	consumer := app.NewConsumer(
		jobQueue,
		videoStore,
		audioStore,
		app.NewFFmpegTranscoder("./tmp"),
		notifier,
		cfg.Workers,
		cfg.TranscodeTimeout,
	)

	// 收到訊號時結束消費，處理中的 job 不會 Ack，broker 會重新投遞
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Log.Info("收到停止訊號，關閉 consumer")
		cancel()
	}()

	if err := consumer.StartConsumer(ctx); err != nil {
		logger.Log.Fatal("Consumer 啟動失敗", zap.Error(err))
	}
	logger.Log.Sync()
}

// newBlobStores 依設定建立影片與音軌兩個類別的 blob store
func newBlobStores(ctx context.Context, cfg config.Convertor) (storage.BlobStore, storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStore(cfg.Storage.VideoTTL), storage.NewMemoryStore(cfg.Storage.AudioTTL), nil

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
			return nil, nil, err
		}
		if err := database.EnsureBucket(ctx, client, cfg.MinIO.VideoBucket); err != nil {
			return nil, nil, err
		}
		if err := database.EnsureBucket(ctx, client, cfg.MinIO.AudioBucket); err != nil {
			return nil, nil, err
		}
		videoStore, err := storage.NewMinioStore(ctx, client, cfg.MinIO.VideoBucket, cfg.Storage.VideoTTL)
		if err != nil {
			return nil, nil, err
		}
		audioStore, err := storage.NewMinioStore(ctx, client, cfg.MinIO.AudioBucket, cfg.Storage.AudioTTL)
		if err != nil {
			return nil, nil, err
		}
		return videoStore, audioStore, nil

	default: // gridfs
		mongoURL := fmt.Sprintf("mongodb://%s:%d", cfg.Mongo.Host, cfg.Mongo.Port)
		db, err := database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    mongoURL,
			RetryCount:    cfg.Mongo.RetryCount,
			RetryInterval: time.Duration(cfg.Mongo.RetryInterval) * time.Second,
		}, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		videoStore, err := storage.NewGridFSStore(db.Database, "videos", cfg.Storage.VideoTTL)
		if err != nil {
			return nil, nil, err
		}
		videoStore.StartReaper(ctx, cfg.Storage.ReapInterval)

		audioStore, err := storage.NewGridFSStore(db.Database, "audio", cfg.Storage.AudioTTL)
		if err != nil {
			return nil, nil, err
		}
		audioStore.StartReaper(ctx, cfg.Storage.ReapInterval)
		return videoStore, audioStore, nil
	}
}
