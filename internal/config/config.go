package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
	GPCRdb    GPCRdbConfig
	KLIFS     KLIFSConfig
	Storage   StorageConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	DataDir  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	AlignPerHour     int
	ReshufflePerHour int
}

// SearchConfig holds the MMseqs2 search and template bundle endpoints plus
// the job defaults used by the pipeline.
type SearchConfig struct {
	HostURL     string
	TemplateURL string
	PathSuffix  string
	NTemplates  int
	Shuffle     bool
	PollMinSec  int
	PollMaxSec  int
	MaxWaitSec  int // 0 means wait forever
}

type GPCRdbConfig struct {
	BaseURL string
}

type KLIFSConfig struct {
	BaseURL string
}

type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCOUNT_ID")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.data_dir", "DATA_DIR")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.align_per_hour", "RATELIMIT_ALIGN_PER_HOUR")
	_ = viper.BindEnv("ratelimit.reshuffle_per_hour", "RATELIMIT_RESHUFFLE_PER_HOUR")
	_ = viper.BindEnv("search.host_url", "SEARCH_HOST_URL")
	_ = viper.BindEnv("search.template_url", "SEARCH_TEMPLATE_URL")
	_ = viper.BindEnv("search.path_suffix", "SEARCH_PATH_SUFFIX")
	_ = viper.BindEnv("search.n_templates", "SEARCH_N_TEMPLATES")
	_ = viper.BindEnv("search.shuffle", "SEARCH_SHUFFLE_TEMPLATES")
	_ = viper.BindEnv("search.poll_min_sec", "SEARCH_POLL_MIN_SEC")
	_ = viper.BindEnv("search.poll_max_sec", "SEARCH_POLL_MAX_SEC")
	_ = viper.BindEnv("search.max_wait_sec", "SEARCH_MAX_WAIT_SEC")
	_ = viper.BindEnv("gpcrdb.base_url", "GPCRDB_BASE_URL")
	_ = viper.BindEnv("klifs.base_url", "KLIFS_BASE_URL")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.data_dir", ".")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.align_per_hour", 10)
	viper.SetDefault("ratelimit.reshuffle_per_hour", 30)

	// MMseqs2 search defaults
	viper.SetDefault("search.host_url", "https://a3m.mmseqs.com")
	viper.SetDefault("search.template_url", "https://a3m-templates.mmseqs.com/template")
	viper.SetDefault("search.path_suffix", "env")
	viper.SetDefault("search.n_templates", 20)
	viper.SetDefault("search.shuffle", false)
	viper.SetDefault("search.poll_min_sec", 5)
	viper.SetDefault("search.poll_max_sec", 10)
	viper.SetDefault("search.max_wait_sec", 0)

	// Classification service defaults
	viper.SetDefault("gpcrdb.base_url", "http://gpcrdb.org")
	viper.SetDefault("klifs.base_url", "https://klifs.net/api_v2")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
			DataDir:  viper.GetString("server.data_dir"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			AlignPerHour:     viper.GetInt("ratelimit.align_per_hour"),
			ReshufflePerHour: viper.GetInt("ratelimit.reshuffle_per_hour"),
		},
		Search: SearchConfig{
			HostURL:     viper.GetString("search.host_url"),
			TemplateURL: viper.GetString("search.template_url"),
			PathSuffix:  viper.GetString("search.path_suffix"),
			NTemplates:  viper.GetInt("search.n_templates"),
			Shuffle:     viper.GetBool("search.shuffle"),
			PollMinSec:  viper.GetInt("search.poll_min_sec"),
			PollMaxSec:  viper.GetInt("search.poll_max_sec"),
			MaxWaitSec:  viper.GetInt("search.max_wait_sec"),
		},
		GPCRdb: GPCRdbConfig{
			BaseURL: viper.GetString("gpcrdb.base_url"),
		},
		KLIFS: KLIFSConfig{
			BaseURL: viper.GetString("klifs.base_url"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
