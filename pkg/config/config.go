package config

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Solver    SolverConfig
	Scheduler SchedulerConfig
	Cache     ResultCacheConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig guards the API routes with HS256 bearer tokens when Enabled.
type JWTConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig selects and bounds the optimizer backend.
type SolverConfig struct {
	Backend   string
	TimeLimit time.Duration
	Workers   int
	// Timeout is the per-request deadline propagated to the solver.
	Timeout time.Duration
	// MaxConcurrent caps the number of solves running at once.
	MaxConcurrent int
}

// SchedulerConfig tunes request normalization.
type SchedulerConfig struct {
	MinHorizon int64
	MaxTasks   int
}

// ResultCacheConfig toggles the Redis-backed result cache.
type ResultCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	workers := v.GetInt("SOLVER_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	maxConcurrent := v.GetInt("SOLVER_MAX_CONCURRENT")
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	cfg.Solver = SolverConfig{
		Backend:   strings.ToLower(strings.TrimSpace(v.GetString("SOLVER_BACKEND"))),
		TimeLimit: parseDuration(v.GetString("SOLVER_TIME_LIMIT"), 10*time.Second),
		Workers:   workers,
		Timeout:   parseDuration(v.GetString("SOLVE_TIMEOUT"), 30*time.Second),

		MaxConcurrent: maxConcurrent,
	}

	minHorizon := v.GetInt64("SCHEDULER_MIN_HORIZON")
	if minHorizon <= 0 {
		minHorizon = 1000
	}
	cfg.Scheduler = SchedulerConfig{
		MinHorizon: minHorizon,
		MaxTasks:   v.GetInt("SCHEDULER_MAX_TASKS"),
	}

	cfg.Cache = ResultCacheConfig{
		Enabled: v.GetBool("ENABLE_RESULT_CACHE"),
		TTL:     parseDuration(v.GetString("RESULT_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_BACKEND", "search")
	v.SetDefault("SOLVER_TIME_LIMIT", "10s")
	v.SetDefault("SOLVER_WORKERS", 8)
	v.SetDefault("SOLVE_TIMEOUT", "30s")
	v.SetDefault("SOLVER_MAX_CONCURRENT", 0)

	v.SetDefault("SCHEDULER_MIN_HORIZON", 1000)
	v.SetDefault("SCHEDULER_MAX_TASKS", 500)

	v.SetDefault("ENABLE_RESULT_CACHE", false)
	v.SetDefault("RESULT_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
