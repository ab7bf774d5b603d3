package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"media_transcode_service/internal/queue"
	"media_transcode_service/internal/storage"
	transcodedomain "media_transcode_service/internal/transcode/domain"
	"media_transcode_service/internal/upload/domain"
	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadUseCase 這裡封裝了對外提供的應用服務
type UploadUseCase interface {
	Ingest(ctx context.Context, req domain.IngestReq) (*domain.IngestRes, error)
}

type uploadUseCase struct {
	VideoStore storage.BlobStore
	JobQueue   queue.JobQueue
}

// NewUploadUseCase 建立一個新的 UploadUseCase
func NewUploadUseCase(videoStore storage.BlobStore, jobQueue queue.JobQueue) UploadUseCase {
	return &uploadUseCase{
		VideoStore: videoStore,
		JobQueue:   jobQueue,
	}
}

// Ingest 接收上傳，完成 blob 寫入後才發布轉碼工作訊息。
// 順序不可對調：blob 寫入成功之前，job 絕不能進佇列。
// 若 blob 寫入成功但發布失敗，孤兒 blob 交給 TTL 自行回收。
func (u *uploadUseCase) Ingest(ctx context.Context, req domain.IngestReq) (*domain.IngestRes, error) {
	if len(req.File) == 0 {
		errMsg := fmt.Sprintf("fileName[%s] 上傳內容為空", req.Filename)
		return nil, errprocess.SetAs(errprocess.ErrInvalidInput, errMsg)
	}

	videoID, err := u.VideoStore.Put(ctx, bytes.NewReader(req.File), storage.PutOptions{
		ContentType: req.ContentType,
		Filename:    req.Filename,
		Metadata: map[string]string{
			storage.MetaUploadedBy: req.UserID,
			storage.MetaUploadTime: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		errMsg := fmt.Sprintf("fileName[%s] 寫入 blob store 失敗 : %v", req.Filename, err)
		return nil, errprocess.SetAs(errprocess.ErrUnavailable, errMsg)
	}

	job := transcodedomain.TranscodeJob{
		JobID:   uuid.NewString(),
		VideoID: videoID,
		UserID:  req.UserID,
		Email:   req.Email,
	}
	data, err := json.Marshal(job)
	if err != nil {
		errMsg := fmt.Sprintf("fileName[%s] Job JSON 訊息序列化失敗 : %v", req.Filename, err)
		return nil, errprocess.Set(errMsg)
	}

	if err := u.JobQueue.Publish(ctx, data); err != nil {
		// blob 已寫入但 job 沒進佇列，這筆上傳對呼叫端而言是失敗的，
		// 留下的 blob 由 TTL 清掉
		errMsg := fmt.Sprintf("fileName[%s] 發布轉碼工作失敗 : %v", req.Filename, err)
		return nil, errprocess.SetAs(errprocess.ErrUnavailable, errMsg)
	}

	logger.Log.Info("已受理上傳並發布轉碼工作",
		zap.String("video_id", videoID),
		zap.String("job_id", job.JobID),
		zap.String("uploaded_by", req.UserID),
	)

	return &domain.IngestRes{
		Message: "File uploaded",
		VideoID: videoID,
		JobID:   job.JobID,
	}, nil
}
