// Package config предоставляет структуры и функции для загрузки конфигурации платформы.
// Конфиг читается один раз при старте процесса и дальше используется только на чтение.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Billing                 `yaml:"billing"`
	BlobStorage             `yaml:"blob_storage"`
	RabbitMQ                `yaml:"rabbitmq"`
	Sweeper                 `yaml:"sweeper"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// BaseURL используется для построения success/cancel ссылок checkout-сессии.
	BaseURL string `yaml:"base_url" env-default:"http://localhost:8080"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Billing настройки платёжного провайдера.
type Billing struct {
	StripeSecretKey     string `yaml:"stripe_secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	SuccessPath         string `yaml:"success_path" env-default:"/api/v1/billing/success"`
	CancelPath          string `yaml:"cancel_path" env-default:"/api/v1/billing/cancelled"`
	// PriceFallback сопоставляет price id провайдера с названием плана,
	// когда ни price, ни product не найдены среди планов.
	PriceFallback map[string]string `yaml:"price_fallback"`
}

// BlobStorage настройки хранилища защищённых файлов.
type BlobStorage struct {
	Backend       string `yaml:"backend" env-default:"fs"`
	MediaRoot     string `yaml:"media_root" env-default:"./media"`
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Region      string `yaml:"s3_region" env-default:"us-east-1"`
	S3Endpoint    string `yaml:"s3_endpoint"`
	S3AccessKey   string `yaml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey   string `yaml:"s3_secret_key" env:"S3_SECRET_KEY"`
}

// RabbitMQ настройки публикации событий подписок.
type RabbitMQ struct {
	RabbitMQEnabled    bool          `yaml:"enabled"`
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Sweeper настройки фоновой проверки истёкших подписок.
type Sweeper struct {
	Schedule string `yaml:"schedule" env-default:"0 3 * * *"`
	// MetricsAddress адрес /metrics процесса cmd/scheduler; пустая строка отключает.
	MetricsAddress string `yaml:"metrics_address" env-default:":9091"`
}

// Load читает конфиг из файла по указанному пути и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if path == "" {
		return nil, fmt.Errorf("%s: config path is empty", op)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// EncryptionKeyBytes декодирует ключ шифрования файлов (base64, 32 байта).
func (b BlobStorage) EncryptionKeyBytes() ([]byte, error) {
	if b.EncryptionKey == "" {
		return nil, errors.New("encryption key is not set")
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		key, err := enc.DecodeString(b.EncryptionKey)
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}
	return nil, errors.New("encryption key must be 32 bytes encoded as base64")
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"  BaseURL: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"Billing:\n"+
			"  StripeSecretKey: %s\n"+
			"  StripeWebhookSecret: %s\n"+
			"  PriceFallback: %d entries\n"+
			"BlobStorage:\n"+
			"  Backend: %s\n"+
			"  MediaRoot: %s\n"+
			"  EncryptionKey: %s\n"+
			"RabbitMQ:\n"+
			"  Enabled: %t\n"+
			"Sweeper:\n"+
			"  Schedule: %s\n"+
			"  MetricsAddress: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.MigrationsPath,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BaseURL,
		c.AddressRedis,
		c.DB,
		mask(c.JWTSecretKey),
		c.TokenTTL,
		mask(c.StripeSecretKey),
		mask(c.StripeWebhookSecret),
		len(c.PriceFallback),
		c.Backend,
		c.MediaRoot,
		mask(c.EncryptionKey),
		c.RabbitMQEnabled,
		c.Schedule,
		c.MetricsAddress,
	)
}
