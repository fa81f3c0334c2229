package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"sprig-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,PATCH,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (system of record)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"sprig"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Graph Database (Memgraph, denormalized lineage index)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"true"`

	// Redis (per-reel transition locks, counter cache)
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	ReelLockTTL   time.Duration `env:"REEL_LOCK_TTL" env-default:"10s"`
	ReelLockWait  time.Duration `env:"REEL_LOCK_WAIT" env-default:"2s"`

	// Kafka
	KafkaBrokers              []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaRenderJobsTopic      string   `env:"KAFKA_RENDER_JOBS_TOPIC" env-default:"render-jobs"`
	KafkaReelEventsTopic      string   `env:"KAFKA_REEL_EVENTS_TOPIC" env-default:"reel-events"`
	KafkaModerationTopic      string   `env:"KAFKA_MODERATION_TOPIC" env-default:"moderation-verdicts"`
	KafkaModerationGroup      string   `env:"KAFKA_MODERATION_CONSUMER_GROUP" env-default:"sprig-moderation-consumer"`
	KafkaModerationConsumerOn bool     `env:"KAFKA_MODERATION_CONSUMER_ENABLED" env-default:"true"`
	KafkaBatchSize            int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout         int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks         int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression          string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Pipeline policy
	LicenseRecheckAtRender bool   `env:"LICENSE_RECHECK_AT_RENDER" env-default:"true"`
	ModerationThresholds   string `env:"MODERATION_HIGH_RISK_THRESHOLDS" env-default:""`
	FeedDefaultLimit       int    `env:"FEED_DEFAULT_LIMIT" env-default:"20"`
	FeedMaxLimit           int    `env:"FEED_MAX_LIMIT" env-default:"100"`
	KFactorDefaultWindow   time.Duration `env:"K_FACTOR_DEFAULT_WINDOW" env-default:"720h"`

	// Lineage repair
	LineageRepairOnStartup bool `env:"LINEAGE_REPAIR_ON_STARTUP" env-default:"true"`
}

// Load reads env files (non-destructive) and binds the environment to a Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // OS env keeps precedence

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}

// HighRiskThresholds parses the MODERATION_HIGH_RISK_THRESHOLDS table.
// Format: "nsfw=0.85,violence=0.9". Unknown kinds are kept verbatim; the
// moderation gate validates kinds at flag-recording time, not here.
func (c *Config) HighRiskThresholds() (map[string]float64, error) {
	out := map[string]float64{}
	if strings.TrimSpace(c.ModerationThresholds) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(c.ModerationThresholds, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid moderation threshold entry %q", pair)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil || score < 0 || score > 1 {
			return nil, fmt.Errorf("invalid moderation threshold score in %q", pair)
		}
		out[strings.TrimSpace(kv[0])] = score
	}
	return out, nil
}
