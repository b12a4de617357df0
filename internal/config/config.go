package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	DatabaseMaxOpenConns   int
	DatabaseMaxIdleConns   int
	DatabaseConnLifetime   time.Duration
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	JWTIssuer              string
	AccessTokenTTL         time.Duration
	RememberMeDays         int
	RefreshTokenDays       int
	BcryptCost             int
	NotificationKeepAlive  time.Duration
	UploadMaxMB            int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AIProvider             string
	AIModel                string
	OpenAIAPIKey           string
	AuthRateLimitPerMinute int
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	CORSAllowOrigins       string
	ActivityFeedCacheTTL   time.Duration
	OverviewCacheTTL       time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// RememberMeTTL is the lifetime of an access token issued with "remember me".
func (c Config) RememberMeTTL() time.Duration {
	return time.Duration(c.RememberMeDays) * 24 * time.Hour
}

// RefreshTokenTTL is the lifetime of refresh tokens.
func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDU")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Education Center API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", "30m")
	v.SetDefault("realtime.channel", "edu:events")
	v.SetDefault("jwt.issuer", "edu-center-api")
	v.SetDefault("jwt.access_ttl", "30m")
	v.SetDefault("jwt.remember_me_days", 7)
	v.SetDefault("jwt.refresh_days", 14)
	v.SetDefault("bcrypt.cost", 12)
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("upload.max_mb", 20)
	v.SetDefault("cloudinary.folder", "edu/materials")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("rate_limit.auth_per_minute", 20)
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("cache.activity_feed_ttl", "45s")
	v.SetDefault("cache.overview_ttl", "5m")

	accessTTL, err := time.ParseDuration(v.GetString("jwt.access_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt access ttl: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("notifications.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification keepalive: %w", err)
	}

	connLifetime, err := time.ParseDuration(v.GetString("database.conn_lifetime"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid database connection lifetime: %w", err)
	}

	feedTTL, err := time.ParseDuration(v.GetString("cache.activity_feed_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid activity feed cache ttl: %w", err)
	}

	overviewTTL, err := time.ParseDuration(v.GetString("cache.overview_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid overview cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		DatabaseMaxOpenConns:   v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:   v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:   connLifetime,
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTIssuer:              v.GetString("jwt.issuer"),
		AccessTokenTTL:         accessTTL,
		RememberMeDays:         v.GetInt("jwt.remember_me_days"),
		RefreshTokenDays:       v.GetInt("jwt.refresh_days"),
		BcryptCost:             v.GetInt("bcrypt.cost"),
		NotificationKeepAlive:  keepAlive,
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		AIModel:                v.GetString("ai.model"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AuthRateLimitPerMinute: v.GetInt("rate_limit.auth_per_minute"),
		BootstrapAdminEmail:    v.GetString("bootstrap.admin_email"),
		BootstrapAdminPassword: v.GetString("bootstrap.admin_password"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		ActivityFeedCacheTTL:   feedTTL,
		OverviewCacheTTL:       overviewTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 30 * time.Minute
	}

	if cfg.RememberMeDays <= 0 {
		cfg.RememberMeDays = 7
	}

	if cfg.RefreshTokenDays <= 0 {
		cfg.RefreshTokenDays = 14
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 20
	}

	return cfg, nil
}
