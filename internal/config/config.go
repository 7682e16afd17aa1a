package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type BillingConfig struct {
	HourlyRate           int64
	MinRetriggerInterval time.Duration
}

type FacilityConfig struct {
	Timezone string
	Location *time.Location
}

type BroadcastConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Channel       string
	ClientBuffer  int
}

type CameraConfig struct {
	ImagesDir      string
	MaxUploadBytes int64
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Billing     BillingConfig
	Facility    FacilityConfig
	Broadcast   BroadcastConfig
	Camera      CameraConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()
	setDefaults(v)

	_ = v.ReadInConfig()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("BILLING_HOURLY_RATE", 10000)
	v.SetDefault("BILLING_MIN_RETRIGGER_INTERVAL", 30*time.Second)
	v.SetDefault("FACILITY_TIMEZONE", "UTC")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BROADCAST_CHANNEL", "parking:dashboard")
	v.SetDefault("BROADCAST_CLIENT_BUFFER", 64)
	v.SetDefault("IMAGES_DIR", "./media")
	v.SetDefault("CAMERA_MAX_UPLOAD_MB", 10)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Billing: BillingConfig{
			HourlyRate:           v.GetInt64("BILLING_HOURLY_RATE"),
			MinRetriggerInterval: v.GetDuration("BILLING_MIN_RETRIGGER_INTERVAL"),
		},
		Facility: FacilityConfig{
			Timezone: v.GetString("FACILITY_TIMEZONE"),
		},
		Broadcast: BroadcastConfig{
			RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			Channel:       v.GetString("BROADCAST_CHANNEL"),
			ClientBuffer:  v.GetInt("BROADCAST_CLIENT_BUFFER"),
		},
		Camera: CameraConfig{
			ImagesDir:      v.GetString("IMAGES_DIR"),
			MaxUploadBytes: v.GetInt64("CAMERA_MAX_UPLOAD_MB") << 20,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case StorageDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.DB.Driver)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Billing.HourlyRate <= 0 {
		return fmt.Errorf("BILLING_HOURLY_RATE must be positive")
	}
	if cfg.Billing.MinRetriggerInterval < 0 {
		return fmt.Errorf("BILLING_MIN_RETRIGGER_INTERVAL must not be negative")
	}
	if cfg.Broadcast.Channel == "" {
		return fmt.Errorf("BROADCAST_CHANNEL is required")
	}
	if cfg.Camera.MaxUploadBytes <= 0 {
		return fmt.Errorf("CAMERA_MAX_UPLOAD_MB must be positive")
	}

	location, err := time.LoadLocation(cfg.Facility.Timezone)
	if err != nil {
		return fmt.Errorf("FACILITY_TIMEZONE: %w", err)
	}
	cfg.Facility.Location = location
	return nil
}
