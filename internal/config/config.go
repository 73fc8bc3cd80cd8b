package config

import "time"

// Config holds server configuration values.
type Config struct {
	TCPAddr         string        `mapstructure:"tcp_addr" yaml:"tcp_addr"`
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	DatabasePath    string        `mapstructure:"db_path" yaml:"db_path"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	MaxConns        int           `mapstructure:"max_conns" yaml:"max_conns"`
	MaxFrameBytes   int           `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	JWTSecret       string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience     string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	AuthRateLimit   int           `mapstructure:"auth_rate_limit" yaml:"auth_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		TCPAddr:         ":12800",
		HTTPAddr:        ":8080",
		DatabasePath:    "courier.db",
		LogLevel:        "info",
		MaxConns:        256,
		MaxFrameBytes:   1 << 16,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		JWTSecret:       "change-me",
		JWTIssuer:       "courier",
		JWTAudience:     "courier-clients",
		AuthRateLimit:   30,
	}
}
