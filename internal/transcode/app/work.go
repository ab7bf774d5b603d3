package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"media_transcode_service/internal/queue"
	"media_transcode_service/internal/storage"
	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/logger"

	"go.uber.org/zap"
)

// Consumer 定義一個消息消費者，將所有必要的依賴注入進來
type Consumer struct {
	jobQueue   queue.JobQueue
	videoStore storage.BlobStore
	audioStore storage.BlobStore
	transcoder Transcoder
	notifier   Notifier

	workers int
	timeout time.Duration
}

// NewConsumer 建構 Consumer 實例
// workers 是同時消費的 goroutine 數，timeout 是單一轉碼工作的上限時間
func NewConsumer(jobQueue queue.JobQueue,
	videoStore, audioStore storage.BlobStore,
	transcoder Transcoder,
	notifier Notifier,
	workers int,
	timeout time.Duration,
) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Consumer{
		jobQueue:   jobQueue,
		videoStore: videoStore,
		audioStore: audioStore,
		transcoder: transcoder,
		notifier:   notifier,
		workers:    workers,
		timeout:    timeout,
	}
}

// StartConsumer 開始消費訊息，啟動 worker pool 處理轉碼工作，阻塞到 ctx 結束
func (c *Consumer) StartConsumer(ctx context.Context) error {
	deliveries, err := c.jobQueue.Consume(ctx)
	if err != nil {
		return err
	}

	logger.Log.Info("Consumer 已啟動，等待轉碼工作訊息", zap.Int("workers", c.workers))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.workerLoop(ctx, workerID, deliveries)
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) workerLoop(ctx context.Context, workerID int, deliveries <-chan queue.Delivery) {
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				logger.Log.Warn("投遞 channel 已關閉", zap.Int("worker", workerID))
				return
			}
			// 單一 job 的失敗只影響那個 job，worker 迴圈繼續跑
			c.handle(ctx, workerID, d)
		case <-ctx.Done():
			logger.Log.Info("worker 收到停止訊號", zap.Int("worker", workerID))
			return
		}
	}
}

// handle 執行單一 job 的狀態機：
// received → fetching → transcoding → storing → acked，任一狀態失敗轉 failed。
// 終端失敗（來源不存在、轉碼失敗）一樣 Ack，重送也不會成功；
// 暫時性失敗（儲存端寫不進去）Nack 重新排隊。
func (c *Consumer) handle(ctx context.Context, workerID int, d queue.Delivery) {
	start := time.Now()

	var job domain.TranscodeJob
	if err := json.Unmarshal(d.Body(), &job); err != nil {
		// 壞訊息重送也解不開，Ack 丟棄以免卡住佇列
		logger.Log.Errorf("解析轉碼工作訊息失敗，丟棄:", err, zap.Int("worker", workerID))
		c.ack(d, job)
		return
	}

	c.logState(job, domain.StateReceived, workerID, start)

	// Fetching：取回原始影片
	c.logState(job, domain.StateFetching, workerID, start)
	video, err := c.videoStore.Get(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// 來源已過期或不存在，終端失敗，重試沒有意義
			c.failTerminal(d, job, workerID, start, "原始影片不存在或已過期", err)
			return
		}
		c.failTransient(d, job, workerID, start, "取回原始影片失敗", err)
		return
	}

	// Transcoding：外部轉碼函式，加上逾時上限
	c.logState(job, domain.StateTranscoding, workerID, start)
	tctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	audio, err := c.transcoder.ExtractAudio(tctx, video.Data)
	if err != nil {
		// 轉碼失敗（內容損壞、格式不支援、逾時）重送也會得到一樣的結果
		c.failTerminal(d, job, workerID, start, "轉碼失敗", err)
		return
	}

	// Storing：先查 dedup，重複投遞的 job 直接重用既有音軌
	c.logState(job, domain.StateStoring, workerID, start)
	audioID, err := c.audioStore.FindByDedupKey(ctx, job.VideoID)
	switch {
	case err == nil:
		logger.Log.Info("偵測到重複投遞，重用既有音軌",
			zap.String("job_id", job.JobID),
			zap.String("video_id", job.VideoID),
			zap.String("audio_id", audioID),
		)
	case errors.Is(err, storage.ErrNotFound):
		audioID, err = c.audioStore.Put(ctx, bytes.NewReader(audio), storage.PutOptions{
			ContentType: "audio/mpeg",
			Filename:    job.VideoID + ".mp3",
			Metadata: map[string]string{
				storage.MetaOriginalVideoID: job.VideoID,
				storage.MetaUploadedBy:      job.UserID,
			},
			DedupKey: job.VideoID,
		})
		if err != nil {
			c.failTransient(d, job, workerID, start, "寫入音軌失敗", err)
			return
		}
	default:
		c.failTransient(d, job, workerID, start, "查詢既有音軌失敗", err)
		return
	}

	// 通知是 best effort，失敗只記錄，不影響 job 的結果
	if err := c.notifier.NotifyCompletion(ctx, domain.CompletionEvent{
		AudioID: audioID,
		VideoID: job.VideoID,
		Email:   job.Email,
	}); err != nil {
		logger.Log.Errorf("發送完成通知失敗:", err,
			zap.String("job_id", job.JobID), zap.String("video_id", job.VideoID))
	}

	// Acking：音軌落地後才確認，之前任何時刻崩潰都會重新投遞
	c.ack(d, job)
	logger.Log.Info("轉碼工作完成",
		zap.String("job_id", job.JobID),
		zap.String("video_id", job.VideoID),
		zap.String("audio_id", audioID),
		zap.String("state", string(domain.StateAcked)),
		zap.Duration("duration", time.Since(start)),
	)
}

// failTerminal 終端失敗：記錄、Ack 丟棄，繼續下一個 job
func (c *Consumer) failTerminal(d queue.Delivery, job domain.TranscodeJob, workerID int, start time.Time, msg string, err error) {
	logger.Log.Errorf(msg+":", err,
		zap.String("job_id", job.JobID),
		zap.String("video_id", job.VideoID),
		zap.String("state", string(domain.StateFailed)),
		zap.Int("worker", workerID),
		zap.Duration("duration", time.Since(start)),
	)
	c.ack(d, job)
}

// failTransient 暫時性失敗：Nack 讓 broker 重新投遞
func (c *Consumer) failTransient(d queue.Delivery, job domain.TranscodeJob, workerID int, start time.Time, msg string, err error) {
	logger.Log.Errorf(msg+"，重新排隊:", err,
		zap.String("job_id", job.JobID),
		zap.String("video_id", job.VideoID),
		zap.Int("worker", workerID),
		zap.Duration("duration", time.Since(start)),
	)
	if err := d.Nack(true); err != nil {
		logger.Log.Errorf("Nack 訊息失敗:", err, zap.String("job_id", job.JobID))
	}
}

func (c *Consumer) ack(d queue.Delivery, job domain.TranscodeJob) {
	if err := d.Ack(); err != nil {
		logger.Log.Errorf("確認訊息失敗:", err, zap.String("job_id", job.JobID))
	}
}

func (c *Consumer) logState(job domain.TranscodeJob, state domain.JobState, workerID int, start time.Time) {
	logger.Log.Debug("job 狀態",
		zap.String("job_id", job.JobID),
		zap.String("video_id", job.VideoID),
		zap.String("state", string(state)),
		zap.Int("worker", workerID),
		zap.Duration("elapsed", time.Since(start)),
	)
}
