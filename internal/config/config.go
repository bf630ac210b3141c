package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Cluster  ClusterConfig   `mapstructure:"cluster"`
	Events   EventsConfig    `mapstructure:"events"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Rate     RateLimitConfig `mapstructure:"rate_limit"`
	Users    []UserConfig    `mapstructure:"users"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr             string `mapstructure:"addr"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	OffsetTTLSeconds int    `mapstructure:"offset_ttl_seconds"`
}

type ClusterConfig struct {
	// PrivateKey seeds the cluster's x25519 keypair (hex). Empty means a
	// fresh keypair per process, which is fine for a single node.
	PrivateKey string `mapstructure:"private_key"`
	Workers    int    `mapstructure:"workers"`
	QueueDepth int    `mapstructure:"queue_depth"`
}

type EventsConfig struct {
	Dir        string `mapstructure:"dir"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type UserConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	APIKey  string `mapstructure:"api_key"`
	Address string `mapstructure:"address"` // 32-byte hex identity
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. WHISPRGATE_REDIS_ADDR
	viper.SetEnvPrefix("whisprgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("redis.offset_ttl_seconds", 86400)
	viper.SetDefault("cluster.workers", 4)
	viper.SetDefault("cluster.queue_depth", 256)
	viper.SetDefault("events.dir", "./events")
	viper.SetDefault("events.buffer_size", 1000)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("rate_limit.qps", 10)
	viper.SetDefault("rate_limit.burst", 20)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
