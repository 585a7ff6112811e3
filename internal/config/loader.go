package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "RELAY"
	envConfigDefaultPath = "RELAY_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
	legacyExt            = ".txt"
)

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"host":       "host",
	"port":       "port",
	"admin-addr": "admin_addr",
	"log-level":  "log_level",
	"log-format": "log_format",
	"workers":    "workers",
}

// Load builds configuration from defaults, an optional config file, env vars
// and flags, and returns the resolved path.
// Precedence: defaults < config file < env vars < changed flags.
//
// A path ending in .txt is read in the legacy format: bind host on the first
// line, port on the second, one banned phrase per remaining line.
func Load(logger *zerolog.Logger, explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()
	configPath := resolveConfigPath(explicitPath)
	legacy := strings.EqualFold(filepath.Ext(configPath), legacyExt)

	if legacy {
		f, err := os.Open(configPath)
		if err != nil {
			return cfg, configPath, fmt.Errorf("open legacy config: %w", err)
		}
		host, port, phrases, err := ParseLegacy(f)
		_ = f.Close()
		if err != nil {
			return cfg, configPath, fmt.Errorf("parse legacy config: %w", err)
		}
		cfg.Host, cfg.Port, cfg.BannedPhrases = host, port, phrases
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if fl := flags.Lookup(name); fl != nil {
				if err := v.BindPFlag(key, fl); err != nil {
					return cfg, configPath, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if !legacy {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
					logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
				} else if logger != nil {
					logger.Info().Str("path", configPath).Msg("created default config")
				}
			} else {
				return cfg, configPath, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	for i, p := range cfg.BannedPhrases {
		cfg.BannedPhrases[i] = strings.ToLower(strings.TrimSpace(p))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, configPath, nil
}

// ParseLegacy reads the legacy plain text config.
func ParseLegacy(r io.Reader) (string, int, []string, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		return "", 0, nil, errors.New("missing bind address line")
	}
	host := strings.TrimSpace(sc.Text())

	if !sc.Scan() {
		return "", 0, nil, errors.New("missing port line")
	}
	port, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return "", 0, nil, fmt.Errorf("port: %w", err)
	}

	phrases := []string{}
	for sc.Scan() {
		if p := strings.ToLower(strings.TrimSpace(sc.Text())); p != "" {
			phrases = append(phrases, p)
		}
	}
	if err := sc.Err(); err != nil {
		return "", 0, nil, err
	}
	return host, port, phrases, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("banned_phrases", cfg.BannedPhrases)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("admin_addr", cfg.AdminAddr)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("queue_size", cfg.QueueSize)
	v.SetDefault("outbound_buffer", cfg.OutboundBuffer)
	v.SetDefault("max_line_length", cfg.MaxLineLength)
	v.SetDefault("max_username_length", cfg.MaxUsernameLength)
	v.SetDefault("rate_limit.messages_per_second", cfg.RateLimit.MessagesPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
