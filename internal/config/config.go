package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/infrastructure/security"
)

// Config is the full service configuration, populated from the environment
// (with optional .env for local development).
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Realm    RealmConfig
	Rotation RotationConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	GRPC     GRPCConfig
}

type GRPCConfig struct {
	Port int `env:"GRPC_PORT" env-default:"9000"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" validate:"required"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME" validate:"required"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// Addr renders the host:port address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"token-service.events"`
	Source  string   `env:"KAFKA_EVENT_SOURCE" env-default:"/token-service"`
}

// RealmConfig configures the single tenant this instance serves: identity,
// required claims and the rotatable signing secret set.
type RealmConfig struct {
	Owner           string            `env:"REALM_OWNER" validate:"required"`
	Issuer          string            `env:"REALM_ISSUER" validate:"required"`
	Audience        string            `env:"REALM_AUDIENCE" validate:"required"`
	CustomClaims    map[string]string `env:"REALM_CUSTOM_CLAIMS"`
	Secrets         map[string]string `env:"REALM_SECRETS" validate:"required"`
	CurrentKeyID    string            `env:"REALM_CURRENT_KEY_ID" validate:"required"`
	AccessTokenTTL  time.Duration     `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration     `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	PersistAccess   bool              `env:"PERSIST_ACCESS_TOKENS" env-default:"false"`
}

// Realm converts the configuration into the domain realm object.
func (c RealmConfig) Realm() models.Realm {
	return models.Realm{
		Owner:        c.Owner,
		Issuer:       c.Issuer,
		Audience:     c.Audience,
		CustomClaims: c.CustomClaims,
	}
}

// SecretSet builds the rotatable signing secret set. Key IDs are ordered
// lexically so the set is deterministic across restarts.
func (c RealmConfig) SecretSet() (*security.SecretSet, error) {
	keyIDs := make([]string, 0, len(c.Secrets))
	for kid := range c.Secrets {
		keyIDs = append(keyIDs, kid)
	}
	sort.Strings(keyIDs)
	entries := make([]security.SecretEntry, 0, len(keyIDs))
	for _, kid := range keyIDs {
		entries = append(entries, security.SecretEntry{KeyID: kid, Secret: []byte(c.Secrets[kid])})
	}
	return security.NewSecretSet(entries, c.CurrentKeyID)
}

type RotationConfig struct {
	Preset string `env:"ROTATION_PRESET" env-default:"balanced"`
	// GracePeriod overrides the preset's grace window when set.
	GracePeriod time.Duration `env:"ROTATION_GRACE_PERIOD" env-default:"-1s"`
}

// Policy resolves the configured rotation policy.
func (c RotationConfig) Policy() (models.RotationPolicy, error) {
	policy, err := models.RotationPolicyFromPreset(c.Preset)
	if err != nil {
		return models.RotationPolicy{}, err
	}
	if c.GracePeriod >= 0 {
		policy.GracePeriod = c.GracePeriod
	}
	return policy, nil
}

type LoggingConfig struct {
	Level       string `env:"LOG_LEVEL" env-default:"info"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
}

type MetricsConfig struct {
	Port int `env:"METRICS_PORT" env-default:"9090"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}
	return cfg, nil
}
