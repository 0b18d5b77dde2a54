package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppHost  string         `mapstructure:"host"`
	Listen   string         `mapstructure:"listen"`
	DB       DBConfig       `mapstructure:"db"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type DBConfig struct {
	Source string `mapstructure:"source"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
}

type SecurityConfig struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
	MinPasswordLen   int           `mapstructure:"min_password_len"`
}

type StorageConfig struct {
	// Backend selects "local" or "s3".
	Backend string   `mapstructure:"backend"`
	Path    string   `mapstructure:"path"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type AuditConfig struct {
	MaxEvents int `mapstructure:"max_events"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("listen", ":8080")
	viper.SetDefault("jwt.pending_ttl", 5*time.Minute)
	viper.SetDefault("jwt.access_ttl", 8*time.Hour)
	viper.SetDefault("security.lockout_threshold", 5)
	viper.SetDefault("security.lockout_duration", 2*time.Hour)
	viper.SetDefault("security.min_password_len", 8)
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.path", "./data/blobs")
	viper.SetDefault("audit.max_events", 100_000)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
