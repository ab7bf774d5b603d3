package domain

const (
	//QueueName definition queue name，沿用既有系統的佇列名稱
	QueueName = "video_queue"
)

// TranscodeJob 定義轉碼工作訊息，欄位名稱必須與既有系統的訊息格式相容
type TranscodeJob struct {
	// JobID 追蹤與除錯用，舊版訊息可能沒有這個欄位
	JobID   string `json:"job_id,omitempty"`
	VideoID string `json:"video_id"` // 原始影片在 blob store 的 id
	UserID  string `json:"user_id"`  // 上傳者，僅透傳不解讀
	Email   string `json:"email"`    // 完成通知的收件者，僅透傳不解讀
}

// JobState worker 狀態機的狀態
type JobState string

const (
	//StateReceived job 從佇列取出
	StateReceived JobState = "received"
	//StateFetching 從 blob store 取回原始影片
	StateFetching JobState = "fetching"
	//StateTranscoding 執行轉碼
	StateTranscoding JobState = "transcoding"
	//StateStoring 寫回轉出的音軌
	StateStoring JobState = "storing"
	//StateAcked 確認完成
	StateAcked JobState = "acked"
	//StateFailed 終端失敗，job 確認後丟棄
	StateFailed JobState = "failed"
)

// CompletionEvent 轉碼完成後發給通知服務的事件內容
type CompletionEvent struct {
	AudioID string `json:"audio_id"`
	VideoID string `json:"video_id"`
	Email   string `json:"email"`
}
