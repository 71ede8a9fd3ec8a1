package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "POLYGLOT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("POLYGLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.url", cfg.Database.URL)

	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.jwt_issuer", cfg.Auth.JWTIssuer)
	v.SetDefault("auth.jwt_audience", cfg.Auth.JWTAudience)

	v.SetDefault("translator.api_key", cfg.Translator.APIKey)
	v.SetDefault("translator.api_url", cfg.Translator.APIURL)
	v.SetDefault("translator.request_timeout", cfg.Translator.RequestTimeout)
	v.SetDefault("translator.max_concurrent", cfg.Translator.MaxConcurrent)
	v.SetDefault("translator.max_retries", cfg.Translator.MaxRetries)
	v.SetDefault("translator.backoff_base", cfg.Translator.BackoffBase)
	v.SetDefault("translator.cache_size", cfg.Translator.CacheSize)
	v.SetDefault("translator.cache_ttl", cfg.Translator.CacheTTL)

	v.SetDefault("limits.join.max", cfg.Limits.Join.Max)
	v.SetDefault("limits.join.window", cfg.Limits.Join.Window)
	v.SetDefault("limits.create_room.max", cfg.Limits.CreateRoom.Max)
	v.SetDefault("limits.create_room.window", cfg.Limits.CreateRoom.Window)
	v.SetDefault("limits.send_message.max", cfg.Limits.SendMessage.Max)
	v.SetDefault("limits.send_message.window", cfg.Limits.SendMessage.Window)
	v.SetDefault("limits.reaction.max", cfg.Limits.Reaction.Max)
	v.SetDefault("limits.reaction.window", cfg.Limits.Reaction.Window)
	v.SetDefault("limits.typing.max", cfg.Limits.Typing.Max)
	v.SetDefault("limits.typing.window", cfg.Limits.Typing.Window)
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
