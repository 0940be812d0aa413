// Package config loads runtime configuration for the crew CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. CREW_* environment variables, with a .env file in the working
//     directory loaded first via godotenv (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via -c/-config or CREW_CONFIG.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the crew REST API
//	-i int      online status check interval (seconds)
//	-d string   local SQLite database path
//	-s string   session store backend (sqlite|file|redis)
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_base_url": "https://crew.example.com/api",
//	  "online_check_interval": "10s",
//	  "resend_cooldown": "60s",
//	  "store_backend": "sqlite",
//	  "database_path": "crew.db"
//	}
package config
