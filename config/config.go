package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/notify"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/farellandr/duesledger/internal/storage"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	WebhookSecret      string
	SignatureTolerance time.Duration

	Processor processor.Config

	LockStaleAfter time.Duration
	SigningSecret  string

	ReceiptBucket      string
	AWSRegion          string
	S3Endpoint         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	ReceiptLocalDir    string
	PublicBaseURL      string

	RabbitMQURL      string
	RabbitMQExchange string

	JWTSecret              string
	InternalServiceKeyHash string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("MONIME_API_BASE_URL", "https://api.monime.io/v1")
	v.SetDefault("PROCESSOR_TIMEOUT", "10s")
	v.SetDefault("SIGNATURE_TOLERANCE", "300s")
	v.SetDefault("RECEIPT_LOCK_STALE_AFTER", "1m")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("RECEIPT_LOCAL_DIR", "./uploads/receipts")
	v.SetDefault("RABBITMQ_EXCHANGE", "payments.events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	processorTimeout, err := duration(v, "PROCESSOR_TIMEOUT")
	if err != nil {
		return nil, err
	}
	tolerance, err := duration(v, "SIGNATURE_TOLERANCE")
	if err != nil {
		return nil, err
	}
	staleAfter, err := duration(v, "RECEIPT_LOCK_STALE_AFTER")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port: v.GetString("PORT"),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),

		WebhookSecret:      v.GetString("MONIME_WEBHOOK_SECRET"),
		SignatureTolerance: tolerance,

		Processor: processor.Config{
			BaseURL:     v.GetString("MONIME_API_BASE_URL"),
			AccessToken: v.GetString("MONIME_ACCESS_TOKEN"),
			SpaceID:     v.GetString("MONIME_SPACE_ID"),
			Timeout:     processorTimeout,
		},

		LockStaleAfter: staleAfter,
		SigningSecret:  v.GetString("RECEIPT_SIGNING_SECRET"),

		ReceiptBucket:      v.GetString("RECEIPT_BUCKET"),
		AWSRegion:          v.GetString("AWS_REGION"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		ReceiptLocalDir:    v.GetString("RECEIPT_LOCAL_DIR"),
		PublicBaseURL:      v.GetString("PUBLIC_BASE_URL"),

		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),

		JWTSecret:              v.GetString("JWT_SECRET"),
		InternalServiceKeyHash: v.GetString("INTERNAL_SERVICE_KEY_HASH"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}, nil
}

// duration accepts Go durations ("90s") and bare numbers of seconds ("90").
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if seconds, err := cast.ToInt64E(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate creates or updates every table and seeds the built-in roles.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleTreasurer, models.RoleMember} {
		role := models.Role{Name: name}
		if err := db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// InitProcessor returns nil when credentials are missing, which puts completion
// handling in trust-the-webhook mode.
func InitProcessor(cfg *Config) processor.API {
	if !cfg.Processor.Configured() {
		return nil
	}
	return processor.NewClient(cfg.Processor)
}

// InitObjectStore prefers S3 when a bucket is configured and falls back to local disk.
func InitObjectStore(ctx context.Context, cfg *Config) (storage.ObjectStore, error) {
	if cfg.ReceiptBucket == "" {
		return storage.NewDiskStore(cfg.ReceiptLocalDir, publicFilesURL(cfg)), nil
	}

	return storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.ReceiptBucket,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
}

// ReceiptFilesPath is where locally stored receipts are served from.
const ReceiptFilesPath = "/files/receipts"

func publicFilesURL(cfg *Config) string {
	if cfg.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(cfg.PublicBaseURL, "/") + ReceiptFilesPath
}

// InitReporter connects to RabbitMQ when RABBITMQ_URL is set. The returned close
// function is always safe to call.
func InitReporter(cfg *Config, logger *slog.Logger) (notify.Reporter, func() error, error) {
	if cfg.RabbitMQURL == "" {
		return notify.NopReporter{Logger: logger}, func() error { return nil }, nil
	}

	reporter := notify.NewAMQPReporter(notify.AMQPConfig{
		URL:      cfg.RabbitMQURL,
		Exchange: cfg.RabbitMQExchange,
	}, logger)
	if err := reporter.Connect(); err != nil {
		return nil, nil, err
	}
	return reporter, reporter.Close, nil
}
