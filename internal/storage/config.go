package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Lin-Jiong-HDU/qbot/internal/core/lookup"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/security"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/status"
)

const (
	ConfigFileName = "config"
	ConfigFileType = "json"
	EnvPrefix      = "QBOT"

	// PlaceholderToken is the token shipped in the example config.
	PlaceholderToken = "INSERT_YOUR_TOKEN_HERE"

	// DefaultWatcherTitle is the main window title of the port watcher.
	DefaultWatcherTitle = `Administrator: C:\WINDOWS\SYSTEM32\WindowsPowerShell\v1.0\powershell.exe`
)

// ConfigError is a fatal configuration problem.
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Key != "" {
		msg += ": " + e.Key
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config holds the application configuration
type Config struct {
	Bot      BotSettings    `mapstructure:"bot_settings"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Commands CommandsConfig `mapstructure:"commands"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Access   AccessConfig   `mapstructure:"access"`
	Lookup   lookup.Config  `mapstructure:"lookup"`
	Status   StatusConfig   `mapstructure:"status"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotSettings holds the privileged identity and the API token.
type BotSettings struct {
	security.Policy `mapstructure:",squash"`
	Token           string `mapstructure:"token"`
}

// PathsConfig holds host filesystem locations
type PathsConfig struct {
	HealthFile        string `mapstructure:"health_file"`
	BaseDir           string `mapstructure:"base_dir"`
	PortalDir         string `mapstructure:"portal_dir"`
	SSHConfig         string `mapstructure:"ssh_config"`
	PowershellProfile string `mapstructure:"powershell_profile"`
	VaultQDrive       string `mapstructure:"vault_qdrive"`
	VaultQDriveAdmin  string `mapstructure:"vault_qdrive_admin"`
}

// MaintenanceSentinel is the file the maintenance script writes when it
// is about to reboot. It lives next to the heartbeat file.
func (p PathsConfig) MaintenanceSentinel() string {
	return filepath.Join(filepath.Dir(p.HealthFile), "maintenance_status.txt")
}

// ScheduleConfig holds every interval and deadline
type ScheduleConfig struct {
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	RestartPollInterval time.Duration `mapstructure:"restart_poll_interval"`
	RestartDeadline     time.Duration `mapstructure:"restart_deadline"`
	StartPollInterval   time.Duration `mapstructure:"start_poll_interval"`
	StartDeadline       time.Duration `mapstructure:"start_deadline"`
	CommandTimeout      time.Duration `mapstructure:"command_timeout"`
}

// CommandsConfig holds argv templates for the external programs.
// Placeholders: {base_dir}, {profile}, {title}, {path}, {account}.
type CommandsConfig struct {
	Maintenance  []string `mapstructure:"maintenance"`
	StartWatcher []string `mapstructure:"start_watcher"`
	Lock         []string `mapstructure:"lock"`
	Deny         []string `mapstructure:"deny"`
	Allow        []string `mapstructure:"allow"`
}

// WatcherConfig describes how to detect the port watcher.
// ProcessName, when set, is matched against the process table instead of
// running Check.
type WatcherConfig struct {
	Title       string   `mapstructure:"title"`
	ProcessName string   `mapstructure:"process_name"`
	Match       string   `mapstructure:"match"`
	Check       []string `mapstructure:"check"`
}

// AccessConfig names the account whose folder access is toggled
type AccessConfig struct {
	Account string `mapstructure:"account"`
}

// StatusConfig lists the volumes in the status report
type StatusConfig struct {
	Volumes []status.Volume `mapstructure:"volumes"`
}

// ServerConfig holds HTTP surface settings
type ServerConfig struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	// Required keys get empty defaults so environment overrides bind
	v.SetDefault("bot_settings.admin_id", "")
	v.SetDefault("bot_settings.token", "")
	v.SetDefault("paths.health_file", "")
	v.SetDefault("paths.base_dir", "")
	v.SetDefault("paths.portal_dir", "")
	v.SetDefault("paths.ssh_config", `C:\ProgramData\ssh\sshd_config`)
	v.SetDefault("paths.powershell_profile", "")
	v.SetDefault("paths.vault_qdrive", "")
	v.SetDefault("paths.vault_qdrive_admin", "")

	// Schedule defaults
	v.SetDefault("schedule.heartbeat_interval", "60s")
	v.SetDefault("schedule.confirm_timeout", "30s")
	v.SetDefault("schedule.restart_poll_interval", "5s")
	v.SetDefault("schedule.restart_deadline", "240s")
	v.SetDefault("schedule.start_poll_interval", "2s")
	v.SetDefault("schedule.start_deadline", "12s")
	v.SetDefault("schedule.command_timeout", "60s")

	// External programs
	v.SetDefault("commands.maintenance", []string{
		"powershell.exe", "-ExecutionPolicy", "Bypass", "-File",
		`{base_dir}\WeeklyMaintenance\WeeklyMaintenance.ps1`,
	})
	v.SetDefault("commands.start_watcher", []string{
		"powershell", "-Command", `Start-ScheduledTask -TaskName "QDRIVE-Sync-ProtonPort"`,
	})
	v.SetDefault("commands.lock", []string{
		"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-Command",
		`Get-Process | Where-Object {$_.MainWindowTitle -eq '{title}'} | Stop-Process -Force -ErrorAction SilentlyContinue; . '{profile}'; QLOCK`,
	})
	v.SetDefault("commands.deny", []string{"icacls", "{path}", "/deny", "{account}:(OI)(CI)(F)"})
	v.SetDefault("commands.allow", []string{"icacls", "{path}", "/remove:d", "{account}"})

	// Watcher defaults
	v.SetDefault("watcher.title", DefaultWatcherTitle)
	v.SetDefault("watcher.process_name", "")
	v.SetDefault("watcher.match", "")
	v.SetDefault("watcher.check", []string{
		"powershell", "-Command", `Get-Process | Where-Object {$_.MainWindowTitle -eq "{title}"}`,
	})

	v.SetDefault("access.account", "QDRIVE")

	// Lookup defaults
	v.SetDefault("lookup.ip_endpoint", "https://api.ipify.org")
	v.SetDefault("lookup.timeout", "5s")
	v.SetDefault("lookup.service_check", []string{
		"powershell", "Get-Service sshd | Select-Object -ExpandProperty Status",
	})
	v.SetDefault("lookup.service_expect", "Running")

	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.rate_limit", 1.0)
	v.SetDefault("server.burst", 5)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from path (or ./config.json when empty),
// applies QBOT_ environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(ConfigFileType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Reason: "config file not found; copy config.example.json to config.json", Err: err}
		}
		return nil, &ConfigError{Reason: "failed to read config", Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Reason: "failed to unmarshal config", Err: err}
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.Paths.PortalDir == "" && c.Paths.BaseDir != "" {
		c.Paths.PortalDir = filepath.Join(c.Paths.BaseDir, "Drive-Portal")
	}
	if len(c.Status.Volumes) == 0 {
		c.Status.Volumes = []status.Volume{
			{Label: "Internal (C)", Path: `C:\`},
			{Label: "External (SSD)", Path: c.Paths.PortalDir},
		}
	}
}

// Validate checks required keys. The first problem found is returned.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"bot_settings.admin_id", c.Bot.PrivilegedID},
		{"bot_settings.token", c.Bot.Token},
		{"paths.health_file", c.Paths.HealthFile},
		{"paths.base_dir", c.Paths.BaseDir},
		{"paths.vault_qdrive", c.Paths.VaultQDrive},
		{"paths.vault_qdrive_admin", c.Paths.VaultQDriveAdmin},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Key: r.key, Reason: "missing required value"}
		}
	}

	if c.Bot.Token == PlaceholderToken {
		return &ConfigError{Key: "bot_settings.token", Reason: "placeholder token; put your token in config.json"}
	}

	if c.Schedule.HeartbeatInterval <= 0 {
		return &ConfigError{Key: "schedule.heartbeat_interval", Reason: "must be positive"}
	}
	if c.Schedule.ConfirmTimeout <= 0 {
		return &ConfigError{Key: "schedule.confirm_timeout", Reason: "must be positive"}
	}
	return nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// String renders a config summary with the token redacted.
func (c *Config) String() string {
	token := "<unset>"
	if c.Bot.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("admin_id=%s token=%s health_file=%s portal_dir=%s",
		c.Bot.PrivilegedID, token, c.Paths.HealthFile, c.Paths.PortalDir)
}
