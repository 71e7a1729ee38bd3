package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of the CLI, the HTTP server and the Lambda handler.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Enka    EnkaConfig    `mapstructure:"enka"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Scoring ScoringConfig `mapstructure:"scoring"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// BodyLimit caps POSTed payloads, in bytes.
	BodyLimit int64 `mapstructure:"body_limit"`
}

type EnkaConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// CacheConfig selects the payload cache. An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
}

// StoreConfig locates the saved-accounts database. An empty Path disables the store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScoringConfig struct {
	// Workers is the character-mapping pool size; 0 means GOMAXPROCS.
	Workers       int    `mapstructure:"workers"`
	KnowledgePath string `mapstructure:"knowledge_path"`
}

// LoadConfig reads configuration from defaults, an optional YAML file and
// GENSHIN_VIEWER_* environment variables, later sources winning. An empty path
// searches ./genshin-viewer.yaml and ./config/genshin-viewer.yaml.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("genshin-viewer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("GENSHIN_VIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Enka.MaxAttempts < 1 {
		cfg.Enka.MaxAttempts = 1
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.body_limit", defaultBodyLimit)

	v.SetDefault("enka.base_url", "https://enka.network/api")
	v.SetDefault("enka.user_agent", "genshin-viewer/1.0")
	v.SetDefault("enka.timeout", 10*time.Second)
	v.SetDefault("enka.max_attempts", 3)
	v.SetDefault("enka.backoff", 500*time.Millisecond)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.default_ttl", 60*time.Second)

	v.SetDefault("store.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scoring.workers", 0)
	v.SetDefault("scoring.knowledge_path", "")
}
