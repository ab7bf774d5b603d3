package config

import "time"

// Upload definition upload_service YAML structure
type Upload struct {
	Port string `mapstructure:"port"`
	IP   string `mapstructure:"ip"`

	Mongo    DatabaseConfig `mapstructure:"mongo"`
	RabbitMQ RabbitConfig   `mapstructure:"rabbitmq"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// Convertor definition convertor_service YAML structure
type Convertor struct {
	// Workers 同時消費 job 的 goroutine 數量
	Workers int `mapstructure:"workers"`
	// TranscodeTimeout 單一轉碼工作的上限時間
	TranscodeTimeout time.Duration `mapstructure:"transcode_timeout"`

	Mongo    DatabaseConfig `mapstructure:"mongo"`
	RabbitMQ RabbitConfig   `mapstructure:"rabbitmq"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// StorageConfig definition blob store setting
type StorageConfig struct {
	// Driver 可選 gridfs / minio / memory
	Driver string `mapstructure:"driver"`
	// VideoTTL 原始影片的存活時間，0 表示永久保存
	VideoTTL time.Duration `mapstructure:"video_ttl"`
	// AudioTTL 轉出音軌的存活時間，0 表示永久保存
	AudioTTL time.Duration `mapstructure:"audio_ttl"`
	// ReapInterval 背景回收器的掃描間隔
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// RabbitConfig definition rabbitmq setting
type RabbitConfig struct {
	IP       string `mapstructure:"ip"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// QueueName 轉碼工作佇列名稱
	QueueName string `mapstructure:"queue_name"`

	RetryInterval int `mapstructure:"retry_interval"`
	RetryCount    int `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`

	RetryInterval int `mapstructure:"retry_interval"`
	RetryCount    int `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	VideoBucket string `mapstructure:"video_bucket"`
	AudioBucket string `mapstructure:"audio_bucket"`
	UseSSL      bool   `mapstructure:"use_ssl"`

	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
