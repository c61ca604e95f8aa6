package config

import (
	"fmt"
	"time"
)

// ServerConfig represents the configuration for the tracking HTTP server
type ServerConfig struct {
	Enabled       bool
	ListenAddress string
	Mode          string
}

// TrackingConfig represents the configuration for open and click tracking
type TrackingConfig struct {
	AllowedRedirectDomains []string
}

// ReplyMonitorConfig represents the configuration for the mailbox reply detector
type ReplyMonitorConfig struct {
	Enabled        bool
	Folder         string
	ScanInterval   time.Duration
	SearchWindow   time.Duration
	ProcessedLimit int
	QueueSize      int
	ProcessTimeout time.Duration
	UseIdle        bool
}

// IMAPConfig represents the mailbox connection settings
type IMAPConfig struct {
	Host               string
	Port               int
	Security           string
	Username           string
	Password           string
	InsecureSkipVerify bool
}

// Address returns the host:port pair to dial
func (c IMAPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig represents the configuration for the contact store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// SMTPIntakeConfig represents the configuration for the SMTP intake listener
type SMTPIntakeConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Enabled:       c.GetBool("server.enabled"),
		ListenAddress: c.GetString("server.listen_address"),
		Mode:          c.GetString("server.mode"),
	}
}

// GetTracking returns the tracking configuration
func (c *Config) GetTracking() TrackingConfig {
	return TrackingConfig{
		AllowedRedirectDomains: c.GetStringSlice("tracking.allowed_redirect_domains"),
	}
}

// GetReplyMonitor returns the reply monitor configuration
func (c *Config) GetReplyMonitor() (ReplyMonitorConfig, error) {
	interval, err := c.GetDuration("reply_monitor.scan_interval")
	if err != nil {
		return ReplyMonitorConfig{}, fmt.Errorf("invalid scan interval: %w", err)
	}
	window, err := c.GetDuration("reply_monitor.search_window")
	if err != nil {
		return ReplyMonitorConfig{}, fmt.Errorf("invalid search window: %w", err)
	}
	timeout, err := c.GetDuration("reply_monitor.process_timeout")
	if err != nil {
		return ReplyMonitorConfig{}, fmt.Errorf("invalid process timeout: %w", err)
	}

	return ReplyMonitorConfig{
		Enabled:        c.GetBool("reply_monitor.enabled"),
		Folder:         c.GetString("reply_monitor.folder"),
		ScanInterval:   interval,
		SearchWindow:   window,
		ProcessedLimit: c.GetInt("reply_monitor.processed_limit"),
		QueueSize:      c.GetInt("reply_monitor.queue_size"),
		ProcessTimeout: timeout,
		UseIdle:        c.GetBool("reply_monitor.use_idle"),
	}, nil
}

// GetIMAP returns the IMAP configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:               c.GetString("imap.host"),
		Port:               c.GetInt("imap.port"),
		Security:           c.GetString("imap.security"),
		Username:           c.GetString("imap.username"),
		Password:           c.GetString("imap.password"),
		InsecureSkipVerify: c.GetBool("imap.insecure_skip_verify"),
	}
}

// GetStore returns the contact store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetSMTPIntake returns the SMTP intake configuration
func (c *Config) GetSMTPIntake() SMTPIntakeConfig {
	return SMTPIntakeConfig{
		Enabled:         c.GetBool("smtp_intake.enabled"),
		ListenAddress:   c.GetString("smtp_intake.listen_address"),
		Domain:          c.GetString("smtp_intake.domain"),
		MaxMessageBytes: c.GetInt64("smtp_intake.max_message_bytes"),
	}
}
