package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvServerURL           = "CREW_SERVER_URL"
	EnvOnlineCheckInterval = "CREW_ONLINE_CHECK_INTERVAL"
	EnvRequestTimeout      = "CREW_REQUEST_TIMEOUT"
	EnvResendCooldown      = "CREW_RESEND_COOLDOWN"
	EnvStore               = "CREW_STORE"
	EnvDatabasePath        = "CREW_DB_PATH"
	EnvSessionFile         = "CREW_SESSION_FILE"
	EnvRedisAddr           = "CREW_REDIS_ADDR"
	EnvRedisPassword       = "CREW_REDIS_PASSWORD"
	EnvLogLevel            = "CREW_LOG_LEVEL"
	EnvLogFormat           = "CREW_LOG_FORMAT"
)

// parseEnv overlays Config with CREW_* environment variables. A .env file in
// the working directory is loaded first; variables already set in the
// process environment win over it.
//
// Durations use time.ParseDuration syntax ("15s", "1m"). Malformed values
// panic, like the JSON and flag stages.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(fmt.Errorf("invalid %s: %w", key, err))
		}
		*dst = d
	}

	str(EnvServerURL, &cfg.ServerBaseURL)
	dur(EnvOnlineCheckInterval, &cfg.OnlineCheckInterval)
	dur(EnvRequestTimeout, &cfg.RequestTimeout)
	dur(EnvResendCooldown, &cfg.ResendCooldown)
	str(EnvStore, &cfg.StoreBackend)
	str(EnvDatabasePath, &cfg.DatabasePath)
	str(EnvSessionFile, &cfg.SessionFilePath)
	str(EnvRedisAddr, &cfg.RedisAddr)
	str(EnvRedisPassword, &cfg.RedisPassword)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)
}
