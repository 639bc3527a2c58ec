package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken       string           `yaml:"discord_token"`
	GuildID            string           `yaml:"guild_id"`
	LogLevel           string           `yaml:"log_level"`
	OwnerIDs           []string         `yaml:"owner_ids"`
	ModeratorRoleID    string           `yaml:"moderator_role_id"`
	SupportRoleID      string           `yaml:"support_role_id"`
	TicketCategoryID   string           `yaml:"ticket_category_id"`
	TicketLogChannelID string           `yaml:"ticket_log_channel_id"`
	ModLogChannelID    string           `yaml:"mod_log_channel_id"`
	MessageCacheSize   int              `yaml:"message_cache_size"`
	Health             HealthConfig     `yaml:"health"`
	Audit              AuditConfig      `yaml:"audit"`
	AutoMod            AutoModConfig    `yaml:"automod"`
	Moderation         ModerationConfig `yaml:"moderation"`
	Tickets            TicketConfig     `yaml:"tickets"`
	Giveaways          GiveawayConfig   `yaml:"giveaways"`
	Connect            ConnectConfig    `yaml:"connect"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type AuditConfig struct {
	Database      string `yaml:"database"`
	RetentionDays int    `yaml:"retention_days"`
}

type AutoModConfig struct {
	Enabled         bool         `yaml:"enabled"`
	StrikeThreshold int          `yaml:"strike_threshold"`
	AutoMuteMinutes int          `yaml:"auto_mute_minutes"`
	Rules           []RuleConfig `yaml:"rules"`
}

// RuleConfig is either a regular expression or a list of hosts.
type RuleConfig struct {
	ID      string   `yaml:"id"`
	Pattern string   `yaml:"pattern"`
	Hosts   []string `yaml:"hosts"`
}

type ModerationConfig struct {
	MuteCooldownSeconds int `yaml:"mute_cooldown_seconds"`
	DefaultMuteMinutes  int `yaml:"default_mute_minutes"`
}

type TicketConfig struct {
	DeleteDelaySeconds int `yaml:"delete_delay_seconds"`
}

type GiveawayConfig struct {
	TickSeconds int `yaml:"tick_seconds"`
}

type ConnectConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		MessageCacheSize: 5000,
		Health:           HealthConfig{Enabled: false, Addr: ":8080"},
		Audit:            AuditConfig{RetentionDays: 30},
		AutoMod:          AutoModConfig{Enabled: true, StrikeThreshold: 3, AutoMuteMinutes: 30},
		Moderation:       ModerationConfig{MuteCooldownSeconds: 60, DefaultMuteMinutes: 10},
		Tickets:          TicketConfig{DeleteDelaySeconds: 10},
		Giveaways:        GiveawayConfig{TickSeconds: 5},
		Connect:          ConnectConfig{MaxAttempts: 5},
	}
}

// Load is Read plus the checks needed to connect.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// Read layers defaults, the YAML file at path (or CONFIG_PATH, or
// config.yaml), .env and the process environment.
func Read(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the parts of the config that would otherwise fail late.
func (c Config) Validate() error {
	for _, rule := range c.AutoMod.Rules {
		if rule.ID == "" {
			return errors.New("automod rule without id")
		}
		if rule.Pattern == "" && len(rule.Hosts) == 0 {
			return fmt.Errorf("automod rule %s has neither pattern nor hosts", rule.ID)
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("automod rule %s: %w", rule.ID, err)
			}
		}
	}
	return nil
}

// IsOwner reports whether userID is a configured owner.
func (c Config) IsOwner(userID string) bool {
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.OwnerIDs = envList("OWNER_IDS", cfg.OwnerIDs)
	cfg.ModeratorRoleID = envString("MODERATOR_ROLE_ID", cfg.ModeratorRoleID)
	cfg.SupportRoleID = envString("SUPPORT_ROLE_ID", cfg.SupportRoleID)
	cfg.TicketCategoryID = envString("TICKET_CATEGORY_ID", cfg.TicketCategoryID)
	cfg.TicketLogChannelID = envString("TICKET_LOG_CHANNEL_ID", cfg.TicketLogChannelID)
	cfg.ModLogChannelID = envString("MOD_LOG_CHANNEL_ID", cfg.ModLogChannelID)
	cfg.MessageCacheSize = envInt("MESSAGE_CACHE_SIZE", cfg.MessageCacheSize)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Audit.Database = envString("AUDIT_DATABASE", cfg.Audit.Database)
	cfg.Audit.RetentionDays = envInt("AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)
	cfg.AutoMod.Enabled = envBool("AUTOMOD_ENABLED", cfg.AutoMod.Enabled)
	cfg.AutoMod.StrikeThreshold = envInt("STRIKE_THRESHOLD", cfg.AutoMod.StrikeThreshold)
	cfg.AutoMod.AutoMuteMinutes = envInt("AUTO_MUTE_MINUTES", cfg.AutoMod.AutoMuteMinutes)
	cfg.Moderation.MuteCooldownSeconds = envInt("MUTE_COOLDOWN_SECONDS", cfg.Moderation.MuteCooldownSeconds)
	cfg.Moderation.DefaultMuteMinutes = envInt("DEFAULT_MUTE_MINUTES", cfg.Moderation.DefaultMuteMinutes)
	cfg.Tickets.DeleteDelaySeconds = envInt("TICKET_DELETE_DELAY_SECONDS", cfg.Tickets.DeleteDelaySeconds)
	cfg.Giveaways.TickSeconds = envInt("GIVEAWAY_TICK_SECONDS", cfg.Giveaways.TickSeconds)
	cfg.Connect.MaxAttempts = envInt("CONNECT_MAX_ATTEMPTS", cfg.Connect.MaxAttempts)
}

func normalize(cfg *Config) {
	if cfg.ModLogChannelID == "" {
		cfg.ModLogChannelID = cfg.TicketLogChannelID
	}
	if cfg.AutoMod.StrikeThreshold <= 0 {
		cfg.AutoMod.StrikeThreshold = 3
	}
	if cfg.AutoMod.AutoMuteMinutes <= 0 {
		cfg.AutoMod.AutoMuteMinutes = 30
	}
	if cfg.Moderation.MuteCooldownSeconds < 0 {
		cfg.Moderation.MuteCooldownSeconds = 60
	}
	if cfg.Moderation.DefaultMuteMinutes <= 0 {
		cfg.Moderation.DefaultMuteMinutes = 10
	}
	if cfg.Tickets.DeleteDelaySeconds < 0 {
		cfg.Tickets.DeleteDelaySeconds = 10
	}
	if cfg.Giveaways.TickSeconds <= 0 {
		cfg.Giveaways.TickSeconds = 5
	}
	if cfg.Connect.MaxAttempts <= 0 {
		cfg.Connect.MaxAttempts = 5
	}
	if cfg.MessageCacheSize <= 0 {
		cfg.MessageCacheSize = 5000
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
