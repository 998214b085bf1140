package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ChannelDisabled = "disabled"
	ChannelTelegram = "telegram"
	ChannelTwilio   = "twilio"
)

// Settings is the service configuration. Keys are flat so every one of them
// can be set from the environment (TASKLINE_<KEY>).
type Settings struct {
	DatabasePath string `mapstructure:"database_path"`
	Addr         string `mapstructure:"addr"`

	Timezone         string `mapstructure:"timezone"`
	DailySendHour    int    `mapstructure:"daily_send_hour"`
	DailySendMinute  int    `mapstructure:"daily_send_minute"`
	WeeklyReviewDay  string `mapstructure:"weekly_review_day"`
	WeeklyReviewHour int    `mapstructure:"weekly_review_hour"`
	CharLimit        int    `mapstructure:"char_limit"`
	DefaultPlanID    int64  `mapstructure:"default_plan_id"`
	UserAddress      string `mapstructure:"user_address"`
	SeedOnStart      bool   `mapstructure:"seed_on_start"`

	Channel                string  `mapstructure:"channel"`
	TelegramToken          string  `mapstructure:"telegram_token"`
	TelegramAllowedChatIDs []int64 `mapstructure:"telegram_allowed_chat_ids"`
	TwilioAccountSID       string  `mapstructure:"twilio_account_sid"`
	TwilioAuthToken        string  `mapstructure:"twilio_auth_token"`
	TwilioFromNumber       string  `mapstructure:"twilio_from_number"`
	PublicURL              string  `mapstructure:"public_url"`

	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AIModel         string        `mapstructure:"ai_model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	AgentTimeout    time.Duration `mapstructure:"agent_timeout"`

	AdminAPIKey string `mapstructure:"admin_api_key"`
	JWTSecret   string `mapstructure:"jwt_secret"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var weekdays = map[string]int{"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6}

// WeekdayNumber maps a three-letter day name to cron's day-of-week number.
func WeekdayNumber(day string) (int, bool) {
	n, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
	return n, ok
}

// SetDefaults registers every known key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "data/taskline.db")
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("timezone", "America/Los_Angeles")
	v.SetDefault("daily_send_hour", 8)
	v.SetDefault("daily_send_minute", 0)
	v.SetDefault("weekly_review_day", "sun")
	v.SetDefault("weekly_review_hour", 18)
	v.SetDefault("char_limit", 1500)
	v.SetDefault("default_plan_id", 1)
	v.SetDefault("user_address", "")
	v.SetDefault("seed_on_start", true)
	v.SetDefault("channel", ChannelDisabled)
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_allowed_chat_ids", []int64{})
	v.SetDefault("twilio_account_sid", "")
	v.SetDefault("twilio_auth_token", "")
	v.SetDefault("twilio_from_number", "")
	v.SetDefault("public_url", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("ai_model", "claude-haiku-4-5-20251001")
	v.SetDefault("max_tokens", 512)
	v.SetDefault("agent_timeout", 30*time.Second)
	v.SetDefault("admin_api_key", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads settings from an already-configured viper instance.
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns settings with every default applied.
func Default() *Settings {
	v := viper.New()
	SetDefaults(v)
	var s Settings
	_ = v.Unmarshal(&s)
	return &s
}

// Validate ensures the settings are usable.
func (s *Settings) Validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("timezone %q is invalid: %w", s.Timezone, err)
	}
	if s.DailySendHour < 0 || s.DailySendHour > 23 {
		return fmt.Errorf("daily_send_hour must be between 0 and 23")
	}
	if s.DailySendMinute < 0 || s.DailySendMinute > 59 {
		return fmt.Errorf("daily_send_minute must be between 0 and 59")
	}
	if s.WeeklyReviewHour < 0 || s.WeeklyReviewHour > 23 {
		return fmt.Errorf("weekly_review_hour must be between 0 and 23")
	}
	if _, ok := WeekdayNumber(s.WeeklyReviewDay); !ok {
		return fmt.Errorf("weekly_review_day %q is invalid; use sun, mon, tue, wed, thu, fri or sat", s.WeeklyReviewDay)
	}
	if s.CharLimit <= 3 {
		return fmt.Errorf("char_limit must be greater than 3")
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	switch s.Channel {
	case ChannelDisabled:
	case ChannelTelegram:
		if s.TelegramToken == "" {
			return fmt.Errorf("telegram_token is required for channel telegram")
		}
	case ChannelTwilio:
		if s.TwilioAccountSID == "" || s.TwilioAuthToken == "" || s.TwilioFromNumber == "" {
			return fmt.Errorf("twilio_account_sid, twilio_auth_token and twilio_from_number are required for channel twilio")
		}
	default:
		return fmt.Errorf("channel %q is invalid; use disabled, telegram or twilio", s.Channel)
	}
	return nil
}

// Location returns the configured service timezone.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
