package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests; a missing .env file is not an error.
var loadDotEnv = func() { _ = godotenv.Load() }

// parseEnv overlays values from environment variables. A .env file in the
// working directory is loaded first; variables already set in the process
// environment win over it. Unparsable numeric values are ignored.
//
// Recognised variables:
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_DSN, ACCESS_TOKEN_SECRET,
//	ACCESS_TOKEN_EXPIRY, REFRESH_TOKEN_EXPIRY (Go durations),
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_ENDPOINT,
//	MEDIA_PUBLIC_URL, REDIS_ADDR, REDIS_PASSWORD,
//	RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, COOKIE_SECURE, MAX_UPLOAD_SIZE
func parseEnv(config *Config) {
	loadDotEnv()

	setString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.SecretKey, "ACCESS_TOKEN_SECRET")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_EXPIRY")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_EXPIRY")
	setString(&config.S3RootUser, "S3_ACCESS_KEY")
	setString(&config.S3RootPassword, "S3_SECRET_KEY")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_ENDPOINT")
	setString(&config.MediaPublicBaseURL, "MEDIA_PUBLIC_URL")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.RedisPassword, "REDIS_PASSWORD")
	setDuration(&config.RateLimitWindow, "RATE_LIMIT_WINDOW")

	if v, ok := os.LookupEnv("RATE_LIMIT_REQUESTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.RateLimitRequests = n
		}
	}
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CookieSecure = b
		}
	}
	if v, ok := os.LookupEnv("MAX_UPLOAD_SIZE"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxUploadSize = n
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
