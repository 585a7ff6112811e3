package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// RateLimit configures the optional per-session token bucket. A zero rate
// disables limiting.
type RateLimit struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// Config holds relay configuration values. It is read once at startup.
type Config struct {
	Host          string   `mapstructure:"host" yaml:"host"`
	Port          int      `mapstructure:"port" yaml:"port"`
	BannedPhrases []string `mapstructure:"banned_phrases" yaml:"banned_phrases"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	AdminAddr string `mapstructure:"admin_addr" yaml:"admin_addr"`

	Workers           int           `mapstructure:"workers" yaml:"workers"`
	QueueSize         int           `mapstructure:"queue_size" yaml:"queue_size"`
	OutboundBuffer    int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	MaxLineLength     int           `mapstructure:"max_line_length" yaml:"max_line_length"`
	MaxUsernameLength int           `mapstructure:"max_username_length" yaml:"max_username_length"`
	RateLimit         RateLimit     `mapstructure:"rate_limit" yaml:"rate_limit"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              5000,
		BannedPhrases:     []string{},
		LogLevel:          "info",
		LogFormat:         "console",
		AdminAddr:         "127.0.0.1:9090",
		Workers:           8,
		QueueSize:         256,
		OutboundBuffer:    64,
		MaxLineLength:     4096,
		MaxUsernameLength: 32,
		RateLimit: RateLimit{
			Burst: 10,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Addr is the host:port the relay binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size must not be negative"))
	}
	if c.OutboundBuffer < 0 {
		errs = append(errs, fmt.Errorf("outbound_buffer must not be negative"))
	}
	if c.MaxLineLength < 0 || c.MaxUsernameLength < 0 {
		errs = append(errs, fmt.Errorf("length limits must not be negative"))
	}
	if c.RateLimit.MessagesPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}
