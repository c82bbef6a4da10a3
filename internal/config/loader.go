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
	envConfigDefaultPath = "CLINKCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("CLINKCHAT")
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
	v.SetDefault("metrics_namespace", cfg.MetricsNamespace)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("admin_user", cfg.AdminUser)
	v.SetDefault("default_room", cfg.DefaultRoom)

	v.SetDefault("chat.max_message_len", cfg.Chat.MaxMessageLen)
	v.SetDefault("chat.history_limit", cfg.Chat.HistoryLimit)
	v.SetDefault("chat.poll_history_limit", cfg.Chat.PollHistoryLimit)
	v.SetDefault("chat.rate_limit_count", cfg.Chat.RateLimitCount)
	v.SetDefault("chat.rate_limit_window", cfg.Chat.RateLimitWindow)
	v.SetDefault("chat.mute_duration", cfg.Chat.MuteDuration)
	v.SetDefault("chat.typing_timeout", cfg.Chat.TypingTimeout)
	v.SetDefault("chat.idle_threshold", cfg.Chat.IdleThreshold)
	v.SetDefault("chat.idle_sweep_interval", cfg.Chat.IdleSweepInterval)
	v.SetDefault("chat.poll_duration", cfg.Chat.PollDuration)
	v.SetDefault("chat.poll_sweep_interval", cfg.Chat.PollSweepInterval)
	v.SetDefault("chat.preview_timeout", cfg.Chat.PreviewTimeout)

	v.SetDefault("economy.chat_reward", cfg.Economy.ChatReward)
	v.SetDefault("economy.claim_reward", cfg.Economy.ClaimReward)
	v.SetDefault("economy.claim_min_delay", cfg.Economy.ClaimMinDelay)
	v.SetDefault("economy.claim_max_delay", cfg.Economy.ClaimMaxDelay)
	v.SetDefault("economy.claim_lifetime", cfg.Economy.ClaimLifetime)
	v.SetDefault("economy.duel_timeout", cfg.Economy.DuelTimeout)
	v.SetDefault("economy.give_max", cfg.Economy.GiveMax)
	v.SetDefault("economy.duel_max", cfg.Economy.DuelMax)
	v.SetDefault("economy.rob_base_odds", cfg.Economy.RobBaseOdds)
	v.SetDefault("economy.rob_falloff", cfg.Economy.RobFalloff)
	v.SetDefault("economy.rob_penalty_factor", cfg.Economy.RobPenaltyFactor)
	v.SetDefault("economy.max_private_rooms", cfg.Economy.MaxPrivateRooms)
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
