package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the bootstrap configuration of an application: what it is called,
// where it runs and how it logs.
type Config struct {
	App AppConfig
	Log LogConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
}

type LogConfig struct {
	Level string // debug | info | warn | error
}

// Load reads .env files (if present) into the process environment and
// populates a Config from it. Variables already set in the environment win
// over file values.
//
//	cfg := config.Load()               // ./.env
//	cfg := config.Load("deploy/.env")  // explicit files
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "Fuze"),
			Env:   env("APP_ENV", "local"),
			Debug: envBool("APP_DEBUG", false),
		},
		Log: LogConfig{
			Level: env("LOG_LEVEL", "info"),
		},
	}
}

// Read parses .env files without touching the process environment. Later
// files override earlier ones.
func Read(envFiles ...string) (map[string]string, error) {
	values := make(map[string]string)
	for _, file := range envFiles {
		m, err := godotenv.Read(file)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			values[k] = v
		}
	}
	return values, nil
}

// Lookup returns a raw env value and whether it is set (possibly empty).
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
