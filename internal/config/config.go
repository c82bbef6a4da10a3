package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MetricsNamespace  string        `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	AdminUser         string        `mapstructure:"admin_user" yaml:"admin_user"`
	DefaultRoom       string        `mapstructure:"default_room" yaml:"default_room"`

	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	Economy EconomyConfig `mapstructure:"economy" yaml:"economy"`
}

// ChatConfig groups the message-pipeline and presence tunables.
type ChatConfig struct {
	MaxMessageLen     int           `mapstructure:"max_message_len" yaml:"max_message_len"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	PollHistoryLimit  int           `mapstructure:"poll_history_limit" yaml:"poll_history_limit"`
	RateLimitCount    int           `mapstructure:"rate_limit_count" yaml:"rate_limit_count"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window" yaml:"rate_limit_window"`
	MuteDuration      time.Duration `mapstructure:"mute_duration" yaml:"mute_duration"`
	TypingTimeout     time.Duration `mapstructure:"typing_timeout" yaml:"typing_timeout"`
	IdleThreshold     time.Duration `mapstructure:"idle_threshold" yaml:"idle_threshold"`
	IdleSweepInterval time.Duration `mapstructure:"idle_sweep_interval" yaml:"idle_sweep_interval"`
	PollDuration      time.Duration `mapstructure:"poll_duration" yaml:"poll_duration"`
	PollSweepInterval time.Duration `mapstructure:"poll_sweep_interval" yaml:"poll_sweep_interval"`
	PreviewTimeout    time.Duration `mapstructure:"preview_timeout" yaml:"preview_timeout"`
}

// EconomyConfig groups the coin-economy tunables. The rob odds constants are
// game-balance policy, not correctness requirements, so they live here.
type EconomyConfig struct {
	ChatReward        int64         `mapstructure:"chat_reward" yaml:"chat_reward"`
	ClaimReward       int64         `mapstructure:"claim_reward" yaml:"claim_reward"`
	ClaimMinDelay     time.Duration `mapstructure:"claim_min_delay" yaml:"claim_min_delay"`
	ClaimMaxDelay     time.Duration `mapstructure:"claim_max_delay" yaml:"claim_max_delay"`
	ClaimLifetime     time.Duration `mapstructure:"claim_lifetime" yaml:"claim_lifetime"`
	DuelTimeout       time.Duration `mapstructure:"duel_timeout" yaml:"duel_timeout"`
	GiveMax           int64         `mapstructure:"give_max" yaml:"give_max"`
	DuelMax           int64         `mapstructure:"duel_max" yaml:"duel_max"`
	RobBaseOdds       float64       `mapstructure:"rob_base_odds" yaml:"rob_base_odds"`
	RobFalloff        float64       `mapstructure:"rob_falloff" yaml:"rob_falloff"`
	RobPenaltyFactor  int64         `mapstructure:"rob_penalty_factor" yaml:"rob_penalty_factor"`
	MaxPrivateRooms   int           `mapstructure:"max_private_rooms" yaml:"max_private_rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		MetricsNamespace:  "clinkchat",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "clinkchat.db",
		LogLevel:          "info",
		JWTSecret:         "dev-secret-change-me",
		JWTIssuer:         "clinkchat",
		JWTAudience:       "clinkchat-client",
		AdminUser:         "admin",
		DefaultRoom:       "general",
		Chat: ChatConfig{
			MaxMessageLen:     500,
			HistoryLimit:      5,
			PollHistoryLimit:  20,
			RateLimitCount:    5,
			RateLimitWindow:   10 * time.Second,
			MuteDuration:      10 * time.Second,
			TypingTimeout:     3 * time.Second,
			IdleThreshold:     5 * time.Minute,
			IdleSweepInterval: 30 * time.Second,
			PollDuration:      5 * time.Minute,
			PollSweepInterval: 15 * time.Second,
			PreviewTimeout:    5 * time.Second,
		},
		Economy: EconomyConfig{
			ChatReward:       1,
			ClaimReward:      100,
			ClaimMinDelay:    15 * time.Minute,
			ClaimMaxDelay:    45 * time.Minute,
			ClaimLifetime:    60 * time.Second,
			DuelTimeout:      30 * time.Second,
			GiveMax:          10000,
			DuelMax:          1000,
			RobBaseOdds:      0.6,
			RobFalloff:       10,
			RobPenaltyFactor: 2,
			MaxPrivateRooms:  3,
		},
	}
}
