package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Listen subscribes to bucket notifications for ObjectCreated events.
	Listen bool
}

// S3Config holds settings for the AWS SDK backed storage driver.
// Credentials are resolved through the default AWS provider chain.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	ForcePathStyle bool
}

// StorageConfig selects and configures the object storage driver ("minio" or "s3").
type StorageConfig struct {
	Driver string
	MinIO  MinIOConfig
	S3     S3Config
}

// ImportConfig controls the invoice import workflow.
type ImportConfig struct {
	UploadURLExpirySec     int
	TransactionTTLSec      int
	MinInvoiceNumberLength int
	ReaperIntervalSec      int
	ReaperBatchSize        int
	ReceivedGraceSec       int
	HandlerTimeoutSec      int
}

// UploadURLExpiry is how long an issued upload target stays valid.
func (c ImportConfig) UploadURLExpiry() time.Duration {
	return time.Duration(c.UploadURLExpirySec) * time.Second
}

// TransactionTTL is how long a transaction record lives before the reaper removes it.
func (c ImportConfig) TransactionTTL() time.Duration {
	return time.Duration(c.TransactionTTLSec) * time.Second
}

// ReaperInterval is the polling period of the expiry reaper.
func (c ImportConfig) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSec) * time.Second
}

// ReceivedGrace is how long a RECEIVED transaction outlives its expiry
// so that an import in progress is not reaped under it.
func (c ImportConfig) ReceivedGrace() time.Duration {
	return time.Duration(c.ReceivedGraceSec) * time.Second
}

// HandlerTimeout bounds one event invocation (a client message or a storage event).
func (c ImportConfig) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSec) * time.Second
}

// RealtimeConfig holds settings for the WebSocket channel and inbound storage webhooks.
type RealtimeConfig struct {
	// Endpoint is the public address clients use to reach this node's channel.
	Endpoint        string
	WebhookToken    string
	WriteTimeoutSec int
}

// WriteTimeout bounds a single push to a client connection.
func (c RealtimeConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// AuditConfig holds settings for the audit event sink (CloudEvents over HTTP).
type AuditConfig struct {
	SinkURL string
	Source  string
	BusName string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Timezone string
	LogLevel string
	Database DatabaseConfig
	Storage  StorageConfig
	Import   ImportConfig
	Realtime RealtimeConfig
	Audit    AuditConfig
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "minio"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
				Listen:    getEnvBool("STORAGE_LISTEN", true),
			},
			S3: S3Config{
				Endpoint:       getEnv("S3_ENDPOINT", ""),
				Region:         getEnv("S3_REGION", "us-east-1"),
				Bucket:         getEnv("S3_BUCKET", ""),
				ForcePathStyle: getEnvBool("S3_FORCE_PATH_STYLE", false),
			},
		},
		Import: ImportConfig{
			UploadURLExpirySec:     getEnvInt("IMPORT_UPLOAD_URL_EXPIRY_SEC", 300),
			TransactionTTLSec:      getEnvInt("IMPORT_TRANSACTION_TTL_SEC", 120),
			MinInvoiceNumberLength: getEnvInt("IMPORT_MIN_INVOICE_NUMBER_LENGTH", 5),
			ReaperIntervalSec:      getEnvInt("IMPORT_REAPER_INTERVAL_SEC", 5),
			ReaperBatchSize:        getEnvInt("IMPORT_REAPER_BATCH_SIZE", 100),
			ReceivedGraceSec:       getEnvInt("IMPORT_RECEIVED_GRACE_SEC", 60),
			HandlerTimeoutSec:      getEnvInt("IMPORT_HANDLER_TIMEOUT_SEC", 30),
		},
		Realtime: RealtimeConfig{
			Endpoint:        getEnv("WS_ENDPOINT", "ws://localhost:8080/ws"),
			WebhookToken:    getEnv("STORAGE_WEBHOOK_TOKEN", ""),
			WriteTimeoutSec: getEnvInt("WS_WRITE_TIMEOUT_SEC", 5),
		},
		Audit: AuditConfig{
			SinkURL: getEnv("AUDIT_SINK_URL", ""),
			Source:  getEnv("AUDIT_SOURCE", "app.invoice"),
			BusName: getEnv("AUDIT_BUS_NAME", "AuditEventBus"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
