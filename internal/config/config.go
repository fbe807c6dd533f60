// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server.
type Config struct {
	Addr     string
	AppEnv   string
	LogLevel string

	DatabaseURL string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	CORSOrigins []string

	ArkAPIKey        string
	ArkBaseURL       string
	ChatModel        string
	VisionModel      string
	UploadDir        string
	MaxUploadSizeMB  int
	S3Bucket         string
	S3Region         string
	S3PublicURL      string
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	ForwardAuthHeader string
	BriefSchedule     string
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return &Config{
		Addr:     env("ADDR", ":8080"),
		AppEnv:   env("APP_ENV", "production"),
		LogLevel: env("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:  env("JWT_SECRET", "change-me-in-production"),
		AccessTTL:  durationEnv("JWT_ACCESS_TTL", 30*time.Minute),
		RefreshTTL: durationEnv("JWT_REFRESH_TTL", 7*24*time.Hour),

		CORSOrigins: listEnv("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		ArkAPIKey:       os.Getenv("ARK_API_KEY"),
		ArkBaseURL:      env("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ChatModel:       os.Getenv("DOUBAO_ENDPOINT_ID"),
		VisionModel:     os.Getenv("DOUBAO_VISION_ENDPOINT_ID"),
		UploadDir:       env("UPLOAD_DIR", "uploads"),
		MaxUploadSizeMB: intEnv("MAX_UPLOAD_SIZE_MB", 10),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        env("S3_REGION", "us-east-1"),
		S3PublicURL:     os.Getenv("S3_PUBLIC_URL"),

		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),

		ForwardAuthHeader: os.Getenv("FORWARD_AUTH_HEADER"),
		BriefSchedule:     env("BRIEF_SCHEDULE", "0 21 * * *"),
	}, nil
}

// OIDCEnabled reports whether single sign-on is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// Development reports whether the server runs in a development environment.
func (c *Config) Development() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// MaxUploadBytes is the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func listEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
