package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes environment overrides, e.g. HOSTFACTS_DISPLAY_FORMAT
const EnvPrefix = "HOSTFACTS"

// Config is the complete hostfacts configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Probes  ProbesConfig  `mapstructure:"probes"`
	Display DisplayConfig `mapstructure:"display"`
	Server  ServerConfig  `mapstructure:"server"`
	Agent   AgentConfig   `mapstructure:"agent"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ProbesConfig tunes snapshot acquisition
type ProbesConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	Parallelism      int           `mapstructure:"parallelism"`
	Root             string        `mapstructure:"root"`
	DiskPath         string        `mapstructure:"disk_path"`
	NetworkInterface string        `mapstructure:"network_interface"`
}

// DisplayConfig controls how snapshots are rendered
type DisplayConfig struct {
	Format    string   `mapstructure:"format"`
	Color     string   `mapstructure:"color"`
	Fields    []string `mapstructure:"fields"`
	Separator string   `mapstructure:"separator"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AgentConfig contains settings for the NATS agent
type AgentConfig struct {
	DeviceID          string        `mapstructure:"device_id"`
	SubjectPrefix     string        `mapstructure:"subject_prefix"`
	PublishInterval   time.Duration `mapstructure:"publish_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	LogFile           string        `mapstructure:"log_file"`
	NATS              NATSConfig    `mapstructure:"nats"`
}

// NATSConfig contains NATS connection settings
type NATSConfig struct {
	URLs          []string      `mapstructure:"urls"`
	Auth          AuthConfig    `mapstructure:"auth"`
	TLS           TLSConfig     `mapstructure:"tls"`
	JetStream     bool          `mapstructure:"jetstream"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

// AuthConfig contains NATS authentication settings
type AuthConfig struct {
	Type      string `mapstructure:"type"`
	CredsFile string `mapstructure:"creds_file"`
	Token     string `mapstructure:"token"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig contains TLS settings for the NATS connection
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

var (
	deviceIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	subjectTokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	invalidDeviceChars  = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

	validFormats = map[string]bool{"text": true, "json": true, "yaml": true, "prom": true}
	validColors  = map[string]bool{"auto": true, "always": true, "never": true}
)

// Load reads configuration from path, or from the platform search paths
// when path is empty. A missing config file is not an error unless path
// was given explicitly. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// searchPaths lists config directories in lookup order
func searchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "hostfacts"))
	}
	return append(paths, filepath.Dir(GetDefaultConfigPath()))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("probes.timeout", sysinfo.DefaultProbeTimeout)
	v.SetDefault("probes.parallelism", sysinfo.DefaultParallelism)
	v.SetDefault("probes.root", "/")
	v.SetDefault("probes.network_interface", "")

	v.SetDefault("display.format", "text")
	v.SetDefault("display.color", "auto")
	v.SetDefault("display.fields", sysinfo.FieldKeys())
	v.SetDefault("display.separator", "-")

	v.SetDefault("server.listen", "127.0.0.1:8089")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("agent.device_id", defaultDeviceID())
	v.SetDefault("agent.subject_prefix", "hostfacts")
	v.SetDefault("agent.publish_interval", 5*time.Minute)
	v.SetDefault("agent.heartbeat_interval", time.Minute)
	v.SetDefault("agent.command_timeout", 10*time.Second)
	v.SetDefault("agent.nats.urls", []string{"nats://localhost:4222"})
	v.SetDefault("agent.nats.auth.type", "none")
	v.SetDefault("agent.nats.auth.creds_file", "")
	v.SetDefault("agent.nats.auth.token", "")
	v.SetDefault("agent.nats.auth.username", "")
	v.SetDefault("agent.nats.auth.password", "")
	v.SetDefault("agent.nats.tls.enabled", false)
	v.SetDefault("agent.nats.tls.cert_file", "")
	v.SetDefault("agent.nats.tls.key_file", "")
	v.SetDefault("agent.nats.tls.ca_file", "")
	v.SetDefault("agent.nats.tls.insecure_skip_verify", false)
	v.SetDefault("agent.nats.jetstream", false)
	v.SetDefault("agent.nats.max_reconnects", -1)
	v.SetDefault("agent.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("agent.nats.drain_timeout", 30*time.Second)

	UpdateConfigDefaults(v)
}

// defaultDeviceID derives a device ID from the hostname
func defaultDeviceID() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	host = strings.Trim(invalidDeviceChars.ReplaceAllString(host, "-"), "-")
	if len(host) > 64 {
		host = host[:64]
	}
	return host
}

// Validate checks the settings every command depends on. Agent settings
// are checked separately by ValidateAgent.
func Validate(cfg *Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q is invalid", cfg.Logging.Level)
	}
	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be at least 1")
		}
		if cfg.Logging.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups must not be negative")
		}
	}

	if cfg.Probes.Timeout < 0 {
		return fmt.Errorf("probes.timeout must not be negative")
	}
	if cfg.Probes.Timeout > time.Minute {
		return fmt.Errorf("probes.timeout must not exceed 1 minute")
	}
	if cfg.Probes.Parallelism < 1 {
		return fmt.Errorf("probes.parallelism must be at least 1")
	}
	if cfg.Probes.Parallelism > 64 {
		return fmt.Errorf("probes.parallelism must not exceed 64")
	}

	if !validFormats[cfg.Display.Format] {
		return fmt.Errorf("display.format %q is invalid (must be text, json, yaml or prom)", cfg.Display.Format)
	}
	if !validColors[cfg.Display.Color] {
		return fmt.Errorf("display.color %q is invalid (must be auto, always or never)", cfg.Display.Color)
	}
	if len(cfg.Display.Fields) == 0 {
		return fmt.Errorf("display.fields must list at least one field")
	}
	if _, err := sysinfo.ParseFields(cfg.Display.Fields); err != nil {
		return fmt.Errorf("display.fields: %w", err)
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	return nil
}

// ValidateAgent checks the agent section; only the agent command needs it
func ValidateAgent(cfg *Config) error {
	a := &cfg.Agent

	if a.DeviceID == "" {
		return fmt.Errorf("agent.device_id is required")
	}
	if !deviceIDPattern.MatchString(a.DeviceID) {
		return fmt.Errorf("agent.device_id must contain only alphanumeric characters, dashes, and underscores (got: %s)", a.DeviceID)
	}
	if len(a.DeviceID) > 64 {
		return fmt.Errorf("agent.device_id must not exceed 64 characters")
	}

	if a.SubjectPrefix == "" {
		return fmt.Errorf("agent.subject_prefix is required")
	}
	if len(a.SubjectPrefix) > 50 {
		return fmt.Errorf("agent.subject_prefix must not exceed 50 characters")
	}
	if err := validateSubjectPrefix(a.SubjectPrefix); err != nil {
		return fmt.Errorf("agent.subject_prefix: %w", err)
	}

	if a.PublishInterval != 0 && a.PublishInterval < 10*time.Second {
		return fmt.Errorf("agent.publish_interval must be at least 10 seconds (or 0 to disable)")
	}
	if a.HeartbeatInterval != 0 && a.HeartbeatInterval < 10*time.Second {
		return fmt.Errorf("agent.heartbeat_interval must be at least 10 seconds (or 0 to disable)")
	}
	if a.CommandTimeout < time.Second {
		return fmt.Errorf("agent.command_timeout must be at least 1 second")
	}
	if a.CommandTimeout > 5*time.Minute {
		return fmt.Errorf("agent.command_timeout must not exceed 5 minutes")
	}

	return validateNATS(&a.NATS)
}

// validateSubjectPrefix checks a NATS subject prefix of one or more
// dot-separated tokens
func validateSubjectPrefix(prefix string) error {
	if strings.HasPrefix(prefix, ".") || strings.HasSuffix(prefix, ".") {
		return fmt.Errorf("cannot start or end with a dot")
	}
	if strings.Contains(prefix, "..") {
		return fmt.Errorf("consecutive dots not allowed")
	}
	for _, token := range strings.Split(prefix, ".") {
		if !subjectTokenPattern.MatchString(token) {
			return fmt.Errorf("token %q contains invalid characters (use alphanumeric, dash, underscore)", token)
		}
	}
	return nil
}

func validateNATS(cfg *NATSConfig) error {
	if len(cfg.URLs) == 0 {
		return fmt.Errorf("agent.nats.urls must contain at least one URL")
	}
	for _, u := range cfg.URLs {
		if !strings.Contains(u, "://") {
			return fmt.Errorf("agent.nats.urls: %q is not a URL", u)
		}
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			return fmt.Errorf("agent.nats.auth.token is required for token auth")
		}
	case "userpass":
		if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
			return fmt.Errorf("agent.nats.auth: username and password are required for userpass auth")
		}
	case "creds":
		if cfg.Auth.CredsFile == "" {
			return fmt.Errorf("agent.nats.auth.creds_file is required for creds auth")
		}
		if _, err := os.Stat(cfg.Auth.CredsFile); err != nil {
			return fmt.Errorf("agent.nats.auth: credentials file not found: %s", cfg.Auth.CredsFile)
		}
	default:
		return fmt.Errorf("agent.nats.auth: invalid auth type %q (must be none, token, userpass or creds)", cfg.Auth.Type)
	}

	if cfg.TLS.Enabled {
		if err := validateTLS(&cfg.TLS); err != nil {
			return fmt.Errorf("agent.nats.tls: %w", err)
		}
	}

	if cfg.DrainTimeout < 0 {
		return fmt.Errorf("agent.nats.drain_timeout must not be negative")
	}
	return nil
}

func validateTLS(cfg *TLSConfig) error {
	if cfg.CertFile != "" && cfg.KeyFile == "" {
		return fmt.Errorf("key_file is required when cert_file is set")
	}
	if cfg.KeyFile != "" && cfg.CertFile == "" {
		return fmt.Errorf("cert_file is required when key_file is set")
	}
	if cfg.CertFile != "" {
		if _, err := os.Stat(cfg.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %s", cfg.CertFile)
		}
	}
	if cfg.KeyFile != "" {
		if _, err := os.Stat(cfg.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %s", cfg.KeyFile)
		}
	}
	if cfg.CAFile != "" {
		if _, err := os.Stat(cfg.CAFile); err != nil {
			return fmt.Errorf("CA file not found: %s", cfg.CAFile)
		}
	}
	return nil
}
