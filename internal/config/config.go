// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/game"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port string

	// DatabaseURL selects the Postgres room store. Empty means in-memory rooms.
	DatabaseURL string
	// RedisAddr enables the action log. Empty disables it.
	RedisAddr  string
	RedisDB    int
	QueueName  string
	Rules      game.HouseRules
	RoomIdle   time.Duration
	Sweep      time.Duration
	PruneAfter time.Duration
	TokenTTL   time.Duration
	// PrivateKeyPath and PublicKeyPath load a persistent ed25519 key pair.
	// When either is empty a fresh pair is generated at startup.
	PrivateKeyPath string
	PublicKeyPath  string

	HistorianBatch int
	HistorianFlush time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads the environment. Unset variables take their defaults.
func Load() (Config, error) {
	rules := game.DefaultHouseRules()
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    databaseURL(),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		QueueName:      getEnv("HISTORIAN_QUEUE_NAME", "durak_actions"),
		PrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),
		HistorianBatch: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if rules.TurnTimeout, err = getEnvDuration("TURN_TIMEOUT", rules.TurnTimeout); err != nil {
		return cfg, err
	}
	if cfg.RoomIdle, err = getEnvDuration("ROOM_IDLE_TIMEOUT", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Sweep, err = getEnvDuration("SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.PruneAfter, err = getEnvDuration("SESSION_PRUNE_AFTER", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.TokenTTL, err = auth.ParseTokenExpireTime(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return cfg, err
	}
	rules.MaxPlayers = getEnvInt("MAX_PLAYERS", rules.MaxPlayers)
	if rules.MaxPlayers < 2 {
		return cfg, fmt.Errorf("MAX_PLAYERS must be at least 2, got %d", rules.MaxPlayers)
	}
	rules.SkipOnFailedDefense = getEnvBool("SKIP_ON_FAILED_DEFENSE", rules.SkipOnFailedDefense)
	cfg.Rules = rules
	return cfg, nil
}

// databaseURL prefers DATABASE_URL, then assembles one from the PG_* variables
// the way the historian has always been configured.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getEnv("POSTGRES_USER", "postgres"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		getEnv("PG_DATABASE", "durak"),
	)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
