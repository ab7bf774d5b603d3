package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"media_transcode_service/internal/upload/domain"
	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockUploadUseCase 是 UploadUseCase 的 Mock
type MockUploadUseCase struct {
	mock.Mock
}

// Ingest 模擬上傳處理
func (m *MockUploadUseCase) Ingest(ctx context.Context, req domain.IngestReq) (*domain.IngestRes, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestRes), args.Error(1)
}

func newUploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/upload", body)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Email", "u1@example.com")
	return req
}

// 測試 Upload handler
func TestUploadHandler(t *testing.T) {
	logger.SetNewNop()

	newApp := func(usecase *MockUploadUseCase) *fiber.App {
		app := fiber.New()
		h := NewUploadHandler(usecase)
		app.Post("/upload", h.Upload)
		return app
	}

	t.Run("上傳成功回傳video_id", func(t *testing.T) {
		mockUsecase := new(MockUploadUseCase)
		app := newApp(mockUsecase)

		mockUsecase.On("Ingest", mock.Anything, mock.MatchedBy(func(req domain.IngestReq) bool {
			return string(req.File) == "0123456789" &&
				req.Filename == "test.mp4" &&
				req.UserID == "u1" &&
				req.Email == "u1@example.com"
		})).Return(&domain.IngestRes{
			Message: "File uploaded",
			VideoID: "video-1",
			JobID:   "job-1",
		}, nil).Once()

		resp, err := app.Test(newUploadRequest(t, "file", "test.mp4", []byte("0123456789")))
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		assert.NoError(t, err)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "File uploaded", body["message"])
		assert.Equal(t, "video-1", body["video_id"])

		mockUsecase.AssertExpectations(t)
	})

	t.Run("缺少檔案回傳400", func(t *testing.T) {
		mockUsecase := new(MockUploadUseCase)
		app := newApp(mockUsecase)

		// 錯誤的欄位名稱，等同沒附檔案
		resp, err := app.Test(newUploadRequest(t, "not_file", "test.mp4", []byte("x")))
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		mockUsecase.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})

	t.Run("空檔案回傳400", func(t *testing.T) {
		mockUsecase := new(MockUploadUseCase)
		app := newApp(mockUsecase)

		mockUsecase.On("Ingest", mock.Anything, mock.Anything).
			Return(nil, errprocess.SetAs(errprocess.ErrInvalidInput, "empty upload")).Once()

		resp, err := app.Test(newUploadRequest(t, "file", "empty.mp4", nil))
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("佇列無法寫入回傳503", func(t *testing.T) {
		mockUsecase := new(MockUploadUseCase)
		app := newApp(mockUsecase)

		mockUsecase.On("Ingest", mock.Anything, mock.Anything).
			Return(nil, errprocess.SetAs(errprocess.ErrUnavailable, "broker unreachable")).Once()

		resp, err := app.Test(newUploadRequest(t, "file", "test.mp4", []byte("0123456789")))
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})
}
