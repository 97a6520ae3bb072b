package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/messaging/kafka"
)

// EnvPrefix — префикс переменных окружения сервиса.
const EnvPrefix = "ESHOP"

// Поддерживаемые хранилища каталога и заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска магазина. Переменные окружения
// читаются с префиксом ESHOP_, например ESHOP_GRPC_ADDR.
type Config struct {
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	// RedisAddr включает хранение ключей идемпотентности в Redis.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	// KafkaBrokers включает outbox worker и публикацию уведомлений.
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID     string   `envconfig:"KAFKA_CLIENT_ID"`
	OrderTopic        string   `envconfig:"ORDER_TOPIC"`
	NotificationTopic string   `envconfig:"NOTIFICATION_TOPIC"`
	DLQTopic          string   `envconfig:"DLQ_TOPIC"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY"`

	IdempotencyTTL              time.Duration `envconfig:"IDEMPOTENCY_TTL"`
	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE"`

	// SeedUsers — учётные записи, создаваемые при старте, в формате
	// "email:ROLE_ADMIN:Имя" через запятую.
	SeedUsers []string `envconfig:"SEED_USERS"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaClientID:               "eshop-service",
		OrderTopic:                  kafka.TopicOrderEvents,
		NotificationTopic:           kafka.TopicNotifications,
		DLQTopic:                    kafka.TopicDeadLetterQueue,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyTTL:              domain.DefaultIdempotencyTTL,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		SeedUsers:                   []string{"admin@eshop.local:ROLE_ADMIN:Administrator"},
	}
}

// LoadConfig читает .env (если файл есть) и переменные окружения поверх DefaultConfig.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate отклоняет настройки, с которыми сервис не сможет стартовать.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageDriver)) {
	case "", StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("config: ESHOP_POSTGRES_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("config: unsupported storage driver %q", c.StorageDriver)
	}
	if _, err := ParseSeedUsers(c.SeedUsers); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseSeedUsers разбирает записи SeedUsers. Имя необязательно.
func ParseSeedUsers(entries []string) ([]domain.User, error) {
	users := make([]domain.User, 0, len(entries))
	for _, entry := range compact(entries) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("seed user %q: expected email:role[:name]", entry)
		}

		user := domain.User{
			Email: strings.TrimSpace(parts[0]),
			Role:  domain.Role(strings.ToUpper(strings.TrimSpace(parts[1]))),
		}
		if len(parts) == 3 {
			user.Name = strings.TrimSpace(parts[2])
		}
		if user.Email == "" {
			return nil, fmt.Errorf("seed user %q: %w", entry, domain.ErrLoginRequired)
		}
		if !user.Role.Valid() {
			return nil, fmt.Errorf("seed user %q: unknown role %q", entry, user.Role)
		}
		if user.Name == "" {
			user.Name = user.Email
		}
		users = append(users, user)
	}
	return users, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
