package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	DBMaxConns         int32
	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string
	AdminEmails        []string
	AppTimezone        string
	LogLevel           string
	LogFormat          string

	LogoPath           string
	InstitutionProfile string
	PhotoFetchTimeout  time.Duration
	PhotoURLTTL        time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// LoadEnvFiles reads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (Config, error) {
	cfg := Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: splitCSVEnv(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		AdminEmails:        splitCSVEnv(os.Getenv("ADMIN_EMAILS")),
		AppTimezone:        getEnvOrDefault("APP_TIMEZONE", "Asia/Jakarta"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "json"),
		LogoPath:           getEnvOrDefault("LOGO_PATH", "public/logo.png"),
		InstitutionProfile: strings.TrimSpace(os.Getenv("INSTITUTION_PROFILE")),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		S3Bucket:           strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Endpoint:         strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3Region:           getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:        strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required environment variable: DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing required environment variable: JWT_SECRET")
	}

	var err error
	if cfg.JWTTTL, err = durationEnv("JWT_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.PhotoFetchTimeout, err = durationEnv("PHOTO_FETCH_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PhotoURLTTL, err = durationEnv("PHOTO_URL_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	maxConns, err := intEnv("DB_MAX_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool { return c.RedisAddr != "" }

// S3Enabled reports whether photo storage was configured.
func (c Config) S3Enabled() bool { return c.S3Bucket != "" }

func getEnvOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration like 15s", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: want a non-negative integer", key, v)
	}
	return n, nil
}

func splitCSVEnv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		item := strings.TrimSpace(p)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
