/**
 * @description
 * This package handles the configuration management for the wallet-service. It uses
 * the Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultServerPort           = "8080"
	defaultStorageBackend       = "memory"
	defaultRedisKeyPrefix       = "transfa:wallet"
	defaultSQLitePath           = "wallet.db"
	defaultWalletEventsExchange = "wallet.events"
	defaultBridgeWaitMS         = 3000
	defaultResolveMaxAttempts   = 3
	defaultResolveIntervalMS    = 1000
	defaultSubmitTimeoutSeconds = 30
	defaultSessionIdleTTLMin    = 30
	defaultSessionSweepSchedule = "@every 1m"
	defaultCORSAllowedOrigins   = "*"
	defaultLogMaxSizeMB         = 50
	defaultLogMaxAgeDays        = 14
)

// Config holds all the configuration variables for the wallet-service.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	StorageBackend       string `mapstructure:"STORAGE_BACKEND"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix       string `mapstructure:"REDIS_KEY_PREFIX"`
	SQLitePath           string `mapstructure:"SQLITE_PATH"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	WalletEventsExchange string `mapstructure:"WALLET_EVENTS_EXCHANGE"`
	ChainAPIBaseURL      string `mapstructure:"CHAIN_API_BASE_URL"`
	ChainAPIKey          string `mapstructure:"CHAIN_API_KEY"`
	JWTAssertionSecret   string `mapstructure:"JWT_ASSERTION_SECRET"`
	BridgeWaitMS         int    `mapstructure:"BRIDGE_WAIT_MS"`
	ResolveMaxAttempts   int    `mapstructure:"ADDRESS_RESOLVE_MAX_ATTEMPTS"`
	ResolveIntervalMS    int    `mapstructure:"ADDRESS_RESOLVE_INTERVAL_MS"`
	SubmitTimeoutSeconds int    `mapstructure:"SUBMIT_TIMEOUT_SECONDS"`
	SessionIdleTTLMin    int    `mapstructure:"SESSION_IDLE_TTL_MINUTES"`
	SessionSweepSchedule string `mapstructure:"SESSION_SWEEP_SCHEDULE"`
	CORSAllowedOrigins   string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogFile              string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB         int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxAgeDays        int    `mapstructure:"LOG_MAX_AGE_DAYS"`
}

// LoadConfig reads configuration from environment variables and from an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("STORAGE_BACKEND", defaultStorageBackend)
	viper.SetDefault("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)
	viper.SetDefault("SQLITE_PATH", defaultSQLitePath)
	viper.SetDefault("WALLET_EVENTS_EXCHANGE", defaultWalletEventsExchange)
	viper.SetDefault("BRIDGE_WAIT_MS", defaultBridgeWaitMS)
	viper.SetDefault("ADDRESS_RESOLVE_MAX_ATTEMPTS", defaultResolveMaxAttempts)
	viper.SetDefault("ADDRESS_RESOLVE_INTERVAL_MS", defaultResolveIntervalMS)
	viper.SetDefault("SUBMIT_TIMEOUT_SECONDS", defaultSubmitTimeoutSeconds)
	viper.SetDefault("SESSION_IDLE_TTL_MINUTES", defaultSessionIdleTTLMin)
	viper.SetDefault("SESSION_SWEEP_SCHEDULE", defaultSessionSweepSchedule)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins)
	viper.SetDefault("LOG_MAX_SIZE_MB", defaultLogMaxSizeMB)
	viper.SetDefault("LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("STORAGE_BACKEND")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("SQLITE_PATH")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CHAIN_API_BASE_URL")
	_ = viper.BindEnv("CHAIN_API_KEY")
	_ = viper.BindEnv("JWT_ASSERTION_SECRET")
	_ = viper.BindEnv("BRIDGE_WAIT_MS")
	_ = viper.BindEnv("ADDRESS_RESOLVE_MAX_ATTEMPTS")
	_ = viper.BindEnv("ADDRESS_RESOLVE_INTERVAL_MS")
	_ = viper.BindEnv("SUBMIT_TIMEOUT_SECONDS")
	_ = viper.BindEnv("SESSION_IDLE_TTL_MINUTES")
	_ = viper.BindEnv("SESSION_SWEEP_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_FILE")
	_ = viper.BindEnv("LOG_MAX_SIZE_MB")
	_ = viper.BindEnv("LOG_MAX_AGE_DAYS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))
	if config.StorageBackend == "" {
		config.StorageBackend = defaultStorageBackend
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	config.ChainAPIBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ChainAPIBaseURL), "/")
	config.JWTAssertionSecret = strings.TrimSpace(config.JWTAssertionSecret)
	if strings.TrimSpace(config.SessionSweepSchedule) == "" {
		config.SessionSweepSchedule = defaultSessionSweepSchedule
	}

	config.BridgeWaitMS = positiveOrDefault("BRIDGE_WAIT_MS", config.BridgeWaitMS, defaultBridgeWaitMS)
	config.ResolveMaxAttempts = positiveOrDefault("ADDRESS_RESOLVE_MAX_ATTEMPTS", config.ResolveMaxAttempts, defaultResolveMaxAttempts)
	config.ResolveIntervalMS = positiveOrDefault("ADDRESS_RESOLVE_INTERVAL_MS", config.ResolveIntervalMS, defaultResolveIntervalMS)
	config.SubmitTimeoutSeconds = positiveOrDefault("SUBMIT_TIMEOUT_SECONDS", config.SubmitTimeoutSeconds, defaultSubmitTimeoutSeconds)
	config.SessionIdleTTLMin = positiveOrDefault("SESSION_IDLE_TTL_MINUTES", config.SessionIdleTTLMin, defaultSessionIdleTTLMin)
	config.LogMaxSizeMB = positiveOrDefault("LOG_MAX_SIZE_MB", config.LogMaxSizeMB, defaultLogMaxSizeMB)
	config.LogMaxAgeDays = positiveOrDefault("LOG_MAX_AGE_DAYS", config.LogMaxAgeDays, defaultLogMaxAgeDays)

	return
}

func positiveOrDefault(key string, value, fallback int) int {
	if value > 0 {
		return value
	}
	log.Printf("level=warn component=config msg=\"non-positive value configured; using default\" key=%s value=%d default=%d", key, value, fallback)
	return fallback
}

func (c Config) BridgeWait() time.Duration {
	return time.Duration(c.BridgeWaitMS) * time.Millisecond
}

func (c Config) ResolveInterval() time.Duration {
	return time.Duration(c.ResolveIntervalMS) * time.Millisecond
}

func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSeconds) * time.Second
}

func (c Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMin) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{defaultCORSAllowedOrigins}
	}
	return origins
}
