package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type DispatchConfig struct {
	// Algorithm picks the signing hash: sha256, sha1, or sha512.
	Algorithm string        `mapstructure:"algorithm"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     int           `mapstructure:"retry"`
	// QueueWorkers and QueueBuffer size the in-process async queue.
	QueueWorkers int `mapstructure:"queue_workers"`
	QueueBuffer  int `mapstructure:"queue_buffer"`
}

type ReceiverConfig struct {
	// Secret verifies inbound calls on the default webhook route.
	Secret string `mapstructure:"secret"`
	// ProviderSecrets maps /webhooks/{provider} to per-provider secrets.
	ProviderSecrets map[string]string `mapstructure:"provider_secrets"`
	// Tolerance is the replay window for inbound timestamps.
	Tolerance time.Duration `mapstructure:"tolerance"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("hookrelay")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/hookrelay")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HOOKRELAY")

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

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/hookrelay.db")

	viper.SetDefault("dispatch.algorithm", "sha256")
	viper.SetDefault("dispatch.timeout", 30*time.Second)
	viper.SetDefault("dispatch.retry", 3)
	viper.SetDefault("dispatch.queue_workers", 16)
	viper.SetDefault("dispatch.queue_buffer", 256)

	viper.SetDefault("receiver.tolerance", 300*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
