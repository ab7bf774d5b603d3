package handlers

import (
	"errors"
	"io"

	"media_transcode_service/internal/upload/app"
	"media_transcode_service/internal/upload/domain"
	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UploadHandler 处理上传相关的 HTTP 请求
type UploadHandler struct {
	Usecase app.UploadUseCase
}

// NewUploadHandler 创建新的 UploadHandler
func NewUploadHandler(usecase app.UploadUseCase) *UploadHandler {
	return &UploadHandler{
		Usecase: usecase,
	}
}

// Upload 接收影片上傳並排入轉碼佇列。
// 身份由上游認證服務處理，這裡只透傳 X-User-ID / X-User-Email。
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file provided"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file provided"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Log.Errorf("讀取上傳檔案失敗:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "read file failed"})
	}

	userID := c.Get("X-User-ID")
	email := c.Get("X-User-Email")

	logger.Log.Debug("Upload request",
		zap.String("filename", fileHeader.Filename),
		zap.String("user_id", userID),
	)

	res, err := h.Usecase.Ingest(c.Context(), domain.IngestReq{
		File:        data,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Filename:    fileHeader.Filename,
		UserID:      userID,
		Email:       email,
	})
	if err != nil {
		switch {
		case errors.Is(err, errprocess.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file provided"})
		case errors.Is(err, errprocess.ErrUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service unavailable"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
		}
	}

	return c.JSON(fiber.Map{
		"message":  res.Message,
		"video_id": res.VideoID,
	})
}
