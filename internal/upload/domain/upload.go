package domain

// IngestReq usecase ingest request
// UserID / Email 由認證服務驗證後帶入，這裡視為不透明字串
type IngestReq struct {
	File        []byte
	ContentType string
	Filename    string
	UserID      string
	Email       string
}

// IngestRes usecase ingest response
type IngestRes struct {
	Message string
	VideoID string
	JobID   string
}
