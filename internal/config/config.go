package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultTableName = "inventory_data"
	defaultCacheTTL  = 30
	defaultLockTTL   = 5
)

var sqlIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Config struct {
	Port                  string `validate:"required,numeric"`
	AllowedOrigin         string `validate:"required"`
	DatabaseURL           string
	TableName             string `validate:"required,sqlident"`
	ViewName              string `validate:"required,sqlident"`
	RedisAddr             string `validate:"omitempty,hostname_port"`
	RedisPassword         string
	RedisDB               int    `validate:"gte=0"`
	ReportCacheTTLSeconds int    `validate:"gte=1"`
	WriteLockTTLSeconds   int    `validate:"gte=1"`
	LogLevel              string `validate:"oneof=trace debug info warn error"`
	LogFormat             string `validate:"oneof=console json"`
	Environment           string
}

// Load reads .env.local and .env when present, then the process environment.
func Load() Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	table := getEnv("INVENTORY_TABLE_NAME", getEnv("MASTER_TABLE_NAME", defaultTableName))

	cfg := Config{
		Port:                  getEnv("PORT", "4000"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "*"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TableName:             strings.TrimSpace(table),
		ViewName:              strings.TrimSpace(getEnv("INVENTORY_VIEW_NAME", table)),
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: positiveInt("REPORT_CACHE_TTL_SECONDS", defaultCacheTTL),
		WriteLockTTLSeconds:   positiveInt("WRITE_LOCK_TTL_SECONDS", defaultLockTTL),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "console")),
		Environment:           strings.ToLower(getEnv("APP_ENV", "production")),
	}

	return cfg
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdentPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %q)", fe.Field(), fe.Tag(), fmt.Sprint(fe.Value()))
		}
		return err
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Development() bool {
	return c.Environment == "development"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
