package credits

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Все параметры читаются из env с префиксом CREDITS_ (CREDITS_DB_PORT и т.д.),
// необязательно из config.yaml
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Storage  string `mapstructure:"STORAGE"` // postgres | memory

	// postgres
	DBHost     string `mapstructure:"DB"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBBase     string `mapstructure:"DB_BASE"`
	Workers    int    `mapstructure:"WORKERS"`

	// redis: nonce и кэш балансов
	CacheURL      string        `mapstructure:"CACHE_URL"`
	CacheUser     string        `mapstructure:"CACHE_USER"`
	CachePassword string        `mapstructure:"CACHE_PASSWORD"`
	CacheDB       int           `mapstructure:"CACHE_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	NonceTimeout  time.Duration `mapstructure:"NONCE_TIMEOUT"`

	// токены
	SigningKey         string `mapstructure:"SIGNING_KEY"`
	TokenIssuer        string `mapstructure:"TOKEN_ISSUER"`
	TokenAudience      string `mapstructure:"TOKEN_AUDIENCE"`
	TokenTTLMinutes    int    `mapstructure:"TOKEN_TTL_MINUTES"`
	TokenMaxTTLMinutes int    `mapstructure:"TOKEN_MAX_TTL_MINUTES"`

	// списание
	CommitTimeout    time.Duration `mapstructure:"COMMIT_TIMEOUT"`
	CommitMaxElapsed time.Duration `mapstructure:"COMMIT_MAX_ELAPSED"`

	AccountCacheSize int           `mapstructure:"ACCOUNT_CACHE_SIZE"`
	AccountCacheTTL  time.Duration `mapstructure:"ACCOUNT_CACHE_TTL"`

	// очереди
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"` // через запятую
	KafkaGroup   string `mapstructure:"KAFKA_GROUP"`
	RabbitURL    string `mapstructure:"RABBIT_URL"`

	// аудит
	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	GRPCAddr     string `mapstructure:"GRPC_ADDR"`
	OtelEndpoint string `mapstructure:"OTEL_ENDPOINT"`
}

var keys = map[string]any{
	"LOG_LEVEL":             "info",
	"STORAGE":               StoragePostgres,
	"DB":                    "",
	"DB_PORT":               "5432",
	"DB_USER":               "",
	"DB_PASSWORD":           "",
	"DB_BASE":               "credits",
	"WORKERS":               5,
	"CACHE_URL":             "",
	"CACHE_USER":            "",
	"CACHE_PASSWORD":        "",
	"CACHE_DB":              0,
	"CACHE_TTL":             5 * time.Minute,
	"NONCE_TIMEOUT":         2 * time.Second,
	"SIGNING_KEY":           "",
	"TOKEN_ISSUER":          "credits",
	"TOKEN_AUDIENCE":        "clinics",
	"TOKEN_TTL_MINUTES":     15,
	"TOKEN_MAX_TTL_MINUTES": 24 * 60,
	"COMMIT_TIMEOUT":        5 * time.Second,
	"COMMIT_MAX_ELAPSED":    30 * time.Second,
	"ACCOUNT_CACHE_SIZE":    1024,
	"ACCOUNT_CACHE_TTL":     30 * time.Second,
	"KAFKA_BROKERS":         "",
	"KAFKA_GROUP":           "credits",
	"RABBIT_URL":            "",
	"MONGO_URI":             "",
	"MONGO_DB":              "credits",
	"HTTP_ADDR":             ":8080",
	"GRPC_ADDR":             ":50051",
	"OTEL_ENDPOINT":         "",
}

// Загрузка: .env (если есть), config.yaml (если есть), env
func Load(paths ...string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("CREDITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, def := range keys {
		v.SetDefault(key, def)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", model.ErrConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConfig, err)
	}
	return cfg, nil
}

// Без ключа подписи сервис не стартует
func (c *Config) Validate() error {
	if c.SigningKey == "" {
		return fmt.Errorf("%w: env CREDITS_SIGNING_KEY is not set", model.ErrConfig)
	}
	if c.TokenTTLMinutes <= 0 || c.TokenMaxTTLMinutes < c.TokenTTLMinutes {
		return fmt.Errorf("%w: token ttl %d must be positive and not above max %d", model.ErrConfig, c.TokenTTLMinutes, c.TokenMaxTTLMinutes)
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DBHost == "" || c.DBUser == "" {
			return fmt.Errorf("%w: env CREDITS_DB and CREDITS_DB_USER are required for postgres storage", model.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", model.ErrConfig, c.Storage)
	}
	if c.CacheURL == "" {
		return fmt.Errorf("%w: env CREDITS_CACHE_URL is not set", model.ErrConfig)
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c *Config) TokenMaxTTL() time.Duration {
	return time.Duration(c.TokenMaxTTLMinutes) * time.Minute
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
