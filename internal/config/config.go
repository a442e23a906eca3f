package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string         `yaml:"discord_token"`
	GuildID       string         `yaml:"guild_id"`
	LogLevel      string         `yaml:"log_level"`
	RetentionDays int            `yaml:"retention_days"`
	Database      DatabaseConfig `yaml:"database"`
	Health        HealthConfig   `yaml:"health"`
	Channels      ChannelConfig  `yaml:"channels"`
	Roles         RoleConfig     `yaml:"roles"`
	Colors        Colors         `yaml:"colors"`
	Prompts       PromptConfig   `yaml:"prompts"`
	Reports       ReportConfig   `yaml:"reports"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ChannelConfig struct {
	SuspiciousUsers string `yaml:"suspicious_users"`
	Log             string `yaml:"log"`
	PointLog        string `yaml:"point_log"`
}

type RoleConfig struct {
	Moderator         string `yaml:"moderator"`
	Helper            string `yaml:"helper"`
	Manager           string `yaml:"manager"`
	Support           string `yaml:"support"`
	PRSubteamLeads    string `yaml:"pr_subteam_leads"`
	PRTranslationTeam string `yaml:"pr_translation_team"`
}

type Colors struct {
	Info    int `yaml:"info"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
}

type PromptConfig struct {
	TTLMinutes int    `yaml:"ttl_minutes"`
	RedisURL   string `yaml:"redis_url"`
}

type ReportConfig struct {
	MaxPerWindow  int `yaml:"max_per_window"`
	WindowSeconds int `yaml:"window_seconds"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		RetentionDays: 90,
		Database:      DatabaseConfig{Driver: "sqlite", DSN: "/data/modbot.db"},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Colors: Colors{
			Info:    0x1E88E5,
			Success: 0x43A047,
			Error:   0xE53935,
		},
		Prompts: PromptConfig{TTLMinutes: 15},
		Reports: ReportConfig{MaxPerWindow: 3, WindowSeconds: 600},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.Database.Driver = normalizeDriver(cfg.Database.Driver)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}
	if c.GuildID == "" {
		return errors.New("GUILD_ID is required")
	}
	if c.Channels.SuspiciousUsers == "" {
		return errors.New("SUSPICIOUS_USERS_CHANNEL is required")
	}
	if c.Database.Driver == "" {
		return errors.New("database driver must be sqlite or postgres")
	}
	if c.Database.DSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	return nil
}

// ModeratorRoles is the set allowed to resolve suspicious user reports.
func (c Config) ModeratorRoles() []string {
	return nonEmpty(c.Roles.Moderator, c.Roles.Helper, c.Roles.Manager)
}

func (c Config) CheckRoles() []string {
	return nonEmpty(c.Roles.Helper, c.Roles.Moderator, c.Roles.Manager, c.Roles.Support, c.Roles.PRSubteamLeads)
}

func (c Config) PlaceholderRoles() []string {
	return nonEmpty(c.Roles.Moderator, c.Roles.Helper, c.Roles.Manager, c.Roles.PRTranslationTeam)
}

func (c Config) ManagerRoles() []string {
	return nonEmpty(c.Roles.Manager)
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Channels.SuspiciousUsers = envString("SUSPICIOUS_USERS_CHANNEL", cfg.Channels.SuspiciousUsers)
	cfg.Channels.Log = envString("LOG_CHANNEL", cfg.Channels.Log)
	cfg.Channels.PointLog = envString("POINT_LOG_CHANNEL", cfg.Channels.PointLog)
	cfg.Roles.Moderator = envString("ROLE_MODERATOR", cfg.Roles.Moderator)
	cfg.Roles.Helper = envString("ROLE_HELPER", cfg.Roles.Helper)
	cfg.Roles.Manager = envString("ROLE_MANAGER", cfg.Roles.Manager)
	cfg.Roles.Support = envString("ROLE_SUPPORT", cfg.Roles.Support)
	cfg.Roles.PRSubteamLeads = envString("ROLE_PR_SUBTEAM_LEADS", cfg.Roles.PRSubteamLeads)
	cfg.Roles.PRTranslationTeam = envString("ROLE_PR_TRANSLATION_TEAM", cfg.Roles.PRTranslationTeam)
	cfg.Colors.Info = envInt("COLOR_INFO", cfg.Colors.Info)
	cfg.Colors.Success = envInt("COLOR_SUCCESS", cfg.Colors.Success)
	cfg.Colors.Error = envInt("COLOR_ERROR", cfg.Colors.Error)
	cfg.Prompts.TTLMinutes = envInt("PROMPT_TTL_MINUTES", cfg.Prompts.TTLMinutes)
	cfg.Prompts.RedisURL = envString("REDIS_URL", cfg.Prompts.RedisURL)
	cfg.Reports.MaxPerWindow = envInt("REPORTS_MAX_PER_WINDOW", cfg.Reports.MaxPerWindow)
	cfg.Reports.WindowSeconds = envInt("REPORTS_WINDOW_SECONDS", cfg.Reports.WindowSeconds)
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

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return ""
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	return out
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
