package errprocess

import (
	"errors"
	"fmt"

	"media_transcode_service/pkg/logger"
)

// 錯誤分類：同步錯誤（ErrInvalidInput、ErrUnavailable）直接回傳給呼叫端，
// 非同步錯誤由 worker 記錄後丟棄，不會讓流程中斷。
var (
	// ErrInvalidInput 上傳內容為空或缺失
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable 佇列或儲存端暫時無法寫入
	ErrUnavailable = errors.New("service unavailable")
	// ErrTranscodeFailure 轉碼失敗或逾時，屬於終端錯誤
	ErrTranscodeFailure = errors.New("transcode failure")
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// SetAs set err info and wrap the error class, 供呼叫端用 errors.Is 判斷
func SetAs(class error, errMsg string) error {
	logger.Log.Error(errMsg)
	return fmt.Errorf("%w: %s", class, errMsg)
}
