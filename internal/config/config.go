package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Dispatch modes.
const (
	DispatchLocal = "local"
	DispatchQueue = "queue"
)

// Registry backends.
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

type Config struct {
	Server     ServerConfig
	Transcoder TranscoderConfig
	Jobs       JobsConfig
	Worker     WorkerConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
	RabbitMQ   RabbitMQConfig
}

type ServerConfig struct {
	Port              int           `envconfig:"PORT" default:"3000"`
	ReadHeaderTimeout time.Duration `envconfig:"API_READ_HEADER_TIMEOUT" default:"10s"`
	ReadTimeout       time.Duration `envconfig:"API_READ_TIMEOUT" default:"30m"`
	WriteTimeout      time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout   time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes    int64         `envconfig:"MAX_UPLOAD_BYTES" default:"5368709120"`
	UploadURLExpiry   time.Duration `envconfig:"UPLOAD_URL_EXPIRY" default:"15m"`
	RateLimit         int           `envconfig:"API_RATE_LIMIT" default:"30"` // submissions per minute per client, 0 disables
	CORSOrigin        string        `envconfig:"CORS_ORIGIN"`
	StreamDir         string        `envconfig:"STREAM_DIR" default:"streams"`
	LogLevel          slog.Level    `envconfig:"LOG_LEVEL" default:"info"`
}

type TranscoderConfig struct {
	FFmpegPath     string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath    string `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	Preset         string `envconfig:"FFMPEG_PRESET" default:"fast"`
	SegmentSeconds int    `envconfig:"DASH_SEGMENT_SECONDS" default:"4"`
}

type JobsConfig struct {
	Retention     time.Duration `envconfig:"JOB_RETENTION" default:"1h"`
	MaxDuration   time.Duration `envconfig:"JOB_MAX_DURATION" default:"2h"`
	SweepInterval time.Duration `envconfig:"JOB_SWEEP_INTERVAL" default:"1m"`
	Dispatch      string        `envconfig:"JOB_DISPATCH" default:"local"`
	Registry      string        `envconfig:"JOB_REGISTRY" default:"memory"`
	StreamLockTTL time.Duration `envconfig:"JOB_STREAM_LOCK_TTL" default:"3h"` // queue mode; outlives JOB_MAX_DURATION
}

type WorkerConfig struct {
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"dashstream"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"dashstream"`
	DBName   string `envconfig:"POSTGRES_DB" default:"dashstream"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Enabled        bool   `envconfig:"MINIO_ENABLED" default:"false"`
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT"`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"sources"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"dashstream"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"dashstream"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks rules that span more than one field.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must not be negative"))
	}
	if c.Server.StreamDir == "" {
		errs = append(errs, errors.New("STREAM_DIR must not be empty"))
	}
	if c.Transcoder.SegmentSeconds <= 0 {
		errs = append(errs, errors.New("DASH_SEGMENT_SECONDS must be positive"))
	}
	if c.Jobs.Retention <= 0 {
		errs = append(errs, errors.New("JOB_RETENTION must be positive"))
	}
	if c.Jobs.MaxDuration < 0 {
		errs = append(errs, errors.New("JOB_MAX_DURATION must not be negative"))
	}

	switch c.Jobs.Registry {
	case RegistryMemory, RegistryRedis:
	default:
		errs = append(errs, fmt.Errorf("JOB_REGISTRY must be %q or %q, got %q", RegistryMemory, RegistryRedis, c.Jobs.Registry))
	}

	switch c.Jobs.Dispatch {
	case DispatchLocal:
		if c.Jobs.SweepInterval <= 0 && c.Jobs.Registry == RegistryMemory {
			errs = append(errs, errors.New("JOB_SWEEP_INTERVAL must be positive with the memory registry"))
		}
	case DispatchQueue:
		// Workers report status through the registry, so it must be shared.
		if c.Jobs.Registry != RegistryRedis {
			errs = append(errs, fmt.Errorf("JOB_DISPATCH=%s requires JOB_REGISTRY=%s", DispatchQueue, RegistryRedis))
		}
		if c.Jobs.StreamLockTTL <= c.Jobs.MaxDuration {
			errs = append(errs, errors.New("JOB_STREAM_LOCK_TTL must exceed JOB_MAX_DURATION"))
		}
	default:
		errs = append(errs, fmt.Errorf("JOB_DISPATCH must be %q or %q, got %q", DispatchLocal, DispatchQueue, c.Jobs.Dispatch))
	}

	return errors.Join(errs...)
}
