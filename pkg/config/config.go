package config

import (
	"errors"
	"strconv"
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

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Solver   SolverConfig
	Policy   PolicyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs cached timetable reads.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SolverConfig bounds solver runs and the job pool.
type SolverConfig struct {
	MaxConcurrentRuns int
	TimeBudget        time.Duration
	IterationBudget   int
}

// PolicyConfig carries institution-wide academic scheduling rules. The
// solver, the conflict validator, and candidate slot generation all receive
// these values explicitly instead of reading package constants.
type PolicyConfig struct {
	MinLessonMinutes   int
	MaxLessonMinutes   int
	LessonBlockMinutes int
	IntervalMinutes    int
	WeeklyHoursLimit   int
	HoursPerCredit     int
	OpeningTime        string
	ClosingTime        string
	TeachingDays       []int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.Solver = SolverConfig{
		MaxConcurrentRuns: v.GetInt("SOLVER_MAX_CONCURRENT_RUNS"),
		TimeBudget:        parseDuration(v.GetString("SOLVER_TIME_BUDGET"), 30*time.Second),
		IterationBudget:   v.GetInt("SOLVER_ITERATION_BUDGET"),
	}

	cfg.Policy = PolicyConfig{
		MinLessonMinutes:   v.GetInt("POLICY_MIN_LESSON_MINUTES"),
		MaxLessonMinutes:   v.GetInt("POLICY_MAX_LESSON_MINUTES"),
		LessonBlockMinutes: v.GetInt("POLICY_LESSON_BLOCK_MINUTES"),
		IntervalMinutes:    v.GetInt("POLICY_INTERVAL_MINUTES"),
		WeeklyHoursLimit:   v.GetInt("POLICY_WEEKLY_HOURS_LIMIT"),
		HoursPerCredit:     v.GetInt("POLICY_HOURS_PER_CREDIT"),
		OpeningTime:        v.GetString("POLICY_OPENING_TIME"),
		ClosingTime:        v.GetString("POLICY_CLOSING_TIME"),
		TeachingDays:       intList(v.GetString("POLICY_TEACHING_DAYS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("SOLVER_MAX_CONCURRENT_RUNS", 2)
	v.SetDefault("SOLVER_TIME_BUDGET", "30s")
	v.SetDefault("SOLVER_ITERATION_BUDGET", 20000)

	// A lesson block is two contiguous 50-minute halves plus the interval
	// between them, 110 minutes on the slot grid.
	v.SetDefault("POLICY_MIN_LESSON_MINUTES", 30)
	v.SetDefault("POLICY_MAX_LESSON_MINUTES", 240)
	v.SetDefault("POLICY_LESSON_BLOCK_MINUTES", 110)
	v.SetDefault("POLICY_INTERVAL_MINUTES", 10)
	v.SetDefault("POLICY_WEEKLY_HOURS_LIMIT", 8)
	v.SetDefault("POLICY_HOURS_PER_CREDIT", 25)
	v.SetDefault("POLICY_OPENING_TIME", "08:00")
	v.SetDefault("POLICY_CLOSING_TIME", "18:00")
	v.SetDefault("POLICY_TEACHING_DAYS", "1,2,3,4,5")
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

func intList(raw string) []int {
	var result []int
	for _, part := range splitAndTrim(raw) {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			continue
		}
		result = append(result, n)
	}
	return result
}
