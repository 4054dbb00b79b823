package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	RedisAddr         string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix       string        `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns configuration with reasonable starter defaults.
// An empty RedisAddr selects the in-process presence registry, meaning
// single-instance deployment only.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "pingchat.db",
		RedisAddr:         "",
		RedisPrefix:       "presence:",
		HistoryLimit:      100,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}
