package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/crewkeeper/internal/flagx"
	"github.com/dmitrijs2005/crewkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Absent keys leave the
// corresponding Config field untouched.
type JsonConfig struct {
	ServerBaseURL       *string         `json:"server_base_url"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	ResendCooldown      *timex.Duration `json:"resend_cooldown"`
	StoreBackend        *string         `json:"store_backend"`
	DatabasePath        *string         `json:"database_path"`
	SessionFilePath     *string         `json:"session_file_path"`
	RedisAddr           *string         `json:"redis_addr"`
	RedisPassword       *string         `json:"redis_password"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c/-config on the command line, or from
// CREW_CONFIG when no flag is given (see flagx.JSONConfigFlags). With no
// path nothing is loaded.
//
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(src *timex.Duration, dst *time.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setStr(jc.ServerBaseURL, &cfg.ServerBaseURL)
	setDur(jc.OnlineCheckInterval, &cfg.OnlineCheckInterval)
	setDur(jc.RequestTimeout, &cfg.RequestTimeout)
	setDur(jc.ResendCooldown, &cfg.ResendCooldown)
	setStr(jc.StoreBackend, &cfg.StoreBackend)
	setStr(jc.DatabasePath, &cfg.DatabasePath)
	setStr(jc.SessionFilePath, &cfg.SessionFilePath)
	setStr(jc.RedisAddr, &cfg.RedisAddr)
	setStr(jc.RedisPassword, &cfg.RedisPassword)
	setStr(jc.LogLevel, &cfg.LogLevel)
	setStr(jc.LogFormat, &cfg.LogFormat)
}
