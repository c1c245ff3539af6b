package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/profilehub/internal/flagx"
	"github.com/dmitrijs2005/profilehub/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations are
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// CookieSecure is a pointer so that an explicit false can be told apart from
// an absent key.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	MediaPublicBaseURL           string         `json:"media_public_base_url"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RateLimitRequests            int            `json:"rate_limit_requests"`
	RateLimitWindow              timex.Duration `json:"rate_limit_window"`
	CookieSecure                 *bool          `json:"cookie_secure"`
	MaxUploadSize                int64          `json:"max_upload_size"`
	HealthCheckInterval          timex.Duration `json:"health_check_interval"`
}

// parseJson loads the JSON file named by -c/-config (or CONFIG) and copies
// every non-zero value into config. Without a path nothing happens.
// An unreadable file or invalid JSON panics: the server must not start with
// a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	overlay(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.MediaPublicBaseURL, c.MediaPublicBaseURL)
	overlay(&config.RedisAddr, c.RedisAddr)
	overlay(&config.RedisPassword, c.RedisPassword)
	overlay(&config.RateLimitRequests, c.RateLimitRequests)
	overlay(&config.RateLimitWindow, c.RateLimitWindow.Duration)
	overlay(&config.MaxUploadSize, c.MaxUploadSize)
	overlay(&config.HealthCheckInterval, c.HealthCheckInterval.Duration)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
