package config

import (
	"encoding/json"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Postgres  PostgresConfig  `json:"postgres"`
	Redis     RedisConfig     `json:"redis"`
	Tracking  TrackingConfig  `json:"tracking"`
	Retention RetentionConfig `json:"retention"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

// Defaults applied to every tracker unless overridden per route group
type TrackingConfig struct {
	DecodeRequestBody bool   `json:"decode_request_body"`
	MaxPathLength     int    `json:"max_path_length"`
	MaxBodyLength     int    `json:"max_body_length"`
	CleanedSubstitute string `json:"cleaned_substitute"`
	BufferSize        int    `json:"buffer_size"`
	BatchSize         int    `json:"batch_size"`
	FlushIntervalSecs int    `json:"flush_interval_seconds"`
}

type RetentionConfig struct {
	Days     int    `json:"days"`
	Schedule string `json:"schedule"`
}

type AuthConfig struct {
	JWTSecret        string `json:"-"`
	TokenExpiryHours int    `json:"token_expiry_hours"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := defaults()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, err
	}

	// Secrets come from the environment, not the config file
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if days := os.Getenv("RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			config.Retention.Days = d
		}
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Tracking: TrackingConfig{
			DecodeRequestBody: true,
			MaxPathLength:     200,
			MaxBodyLength:     64 * 1024,
			CleanedSubstitute: "********",
			BufferSize:        1000,
			BatchSize:         100,
			FlushIntervalSecs: 5,
		},
		Retention: RetentionConfig{
			Days:     30,
			Schedule: "0 0 3 * * *",
		},
		Auth: AuthConfig{
			TokenExpiryHours: 24,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
	}
}
