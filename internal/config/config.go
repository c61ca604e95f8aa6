package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/outreach-tracker/")
	v.AddConfigPath("$HOME/.outreach-tracker")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return load(v)
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// HTTP tracking server
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_address", "0.0.0.0:3000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("tracking.allowed_redirect_domains", []string{})

	// Reply monitor
	v.SetDefault("reply_monitor.enabled", false)
	v.SetDefault("reply_monitor.folder", "INBOX")
	v.SetDefault("reply_monitor.scan_interval", "5m")
	v.SetDefault("reply_monitor.search_window", "24h")
	v.SetDefault("reply_monitor.processed_limit", 1000)
	v.SetDefault("reply_monitor.queue_size", 1)
	v.SetDefault("reply_monitor.process_timeout", "30s")
	v.SetDefault("reply_monitor.use_idle", true)

	// IMAP
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.security", "tls")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.insecure_skip_verify", false)

	// Contact store
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "/data/outreach.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/outreach?parseTime=true")

	// SMTP intake
	v.SetDefault("smtp_intake.enabled", false)
	v.SetDefault("smtp_intake.listen_address", "127.0.0.1:10026")
	v.SetDefault("smtp_intake.domain", "localhost")
	v.SetDefault("smtp_intake.max_message_bytes", 10*1024*1024)

	// reply-check CLI
	v.SetDefault("cli.apply", false)
	v.SetDefault("cli.verbose", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
