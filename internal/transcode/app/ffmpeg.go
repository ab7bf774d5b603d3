package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"
)

// Transcoder 外部轉碼函式的邊界：給原始影片 bytes，產出音軌 bytes 或失敗。
// ctx 逾時必須讓轉碼中止，不能讓 worker 卡死。
type Transcoder interface {
	ExtractAudio(ctx context.Context, video []byte) ([]byte, error)
}

// FFmpegTranscoder 呼叫 ffmpeg 把影片的音軌抽成 mp3
type FFmpegTranscoder struct {
	TmpDir string
}

// NewFFmpegTranscoder create a FFmpegTranscoder
func NewFFmpegTranscoder(tmpDir string) *FFmpegTranscoder {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &FFmpegTranscoder{TmpDir: tmpDir}
}

// ExtractAudio 將影片寫入暫存檔，執行 ffmpeg 抽出 mp3 後讀回
func (t *FFmpegTranscoder) ExtractAudio(ctx context.Context, video []byte) ([]byte, error) {
	if err := os.MkdirAll(t.TmpDir, 0755); err != nil {
		return nil, fmt.Errorf("建立暫存目錄失敗: %w", err)
	}

	inputFile, err := os.CreateTemp(t.TmpDir, "video_*.mp4")
	if err != nil {
		return nil, fmt.Errorf("建立暫存影片檔失敗: %w", err)
	}
	inputPath := inputFile.Name()
	defer os.Remove(inputPath)

	if _, err := inputFile.Write(video); err != nil {
		inputFile.Close()
		return nil, fmt.Errorf("寫入暫存影片檔失敗: %w", err)
	}
	inputFile.Close()

	outputPath := filepath.Join(t.TmpDir, filepath.Base(inputPath)+".mp3")
	defer os.Remove(outputPath)

	cmdArgs := []string{
		"-i", inputPath,
		"-vn", // 去掉視訊軌
		"-acodec", "libmp3lame",
		"-f", "mp3",
		"-y",
		outputPath,
	}
	logger.Log.Debug(fmt.Sprintf("執行 FFmpeg 抽取音軌: ffmpeg %v", cmdArgs))

	// CommandContext: ctx 逾時會直接砍掉 ffmpeg
	cmd := exec.CommandContext(ctx, "ffmpeg", cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: 轉碼逾時", errprocess.ErrTranscodeFailure)
		}
		return nil, fmt.Errorf("%w: FFmpeg 錯誤: %v, output: %s", errprocess.ErrTranscodeFailure, err, string(output))
	}

	audio, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: 讀取轉碼結果失敗: %v", errprocess.ErrTranscodeFailure, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: 轉碼結果為空", errprocess.ErrTranscodeFailure)
	}

	return audio, nil
}
