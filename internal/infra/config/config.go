package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken string
	RiotAPIKey   string

	DataDir     string // default ./data
	RiotBaseURL string // optional override, mainly for tests

	// Scheduling and throttling defaults. Per-guild interval settings
	// override UpdateInterval once a guild has been configured.
	UpdateInterval    time.Duration
	MinUpdateInterval time.Duration
	RequestDelay      time.Duration

	LogLevel  string
	LogFormat string // "console" or "json"
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatal().Str("var", k).Msg("Missing required environment variable")
		}
		return v
	}

	cfg := Config{
		DiscordToken:      get("DISCORD_BOT_TOKEN", true),
		RiotAPIKey:        get("RIOT_API_KEY", true),
		DataDir:           get("RANKBOARD_DATA_DIR", false),
		RiotBaseURL:       get("RIOT_BASE_URL", false),
		UpdateInterval:    seconds("UPDATE_INTERVAL_SECONDS", 3600),
		MinUpdateInterval: seconds("MIN_UPDATE_INTERVAL_SECONDS", 900),
		RequestDelay:      millis("REQUEST_DELAY_MS", 1000),
		LogLevel:          get("LOG_LEVEL", false),
		LogFormat:         get("LOG_FORMAT", false),
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.UpdateInterval < cfg.MinUpdateInterval {
		cfg.UpdateInterval = cfg.MinUpdateInterval
	}
	return cfg
}

func seconds(k string, def int) time.Duration {
	return time.Duration(intEnv(k, def)) * time.Second
}

func millis(k string, def int) time.Duration {
	return time.Duration(intEnv(k, def)) * time.Millisecond
}

func intEnv(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("var", k).Str("value", v).Int("default", def).Msg("Ignoring invalid integer environment variable")
		return def
	}
	return n
}
