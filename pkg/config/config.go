// Package config holds server configuration, bound from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Exit codes used by the snowglobe binary.
const (
	ExitOK          = 0
	ExitStartup     = 1
	ExitConfig      = 2
	ExitCertificate = 3
)

// Defaults for the session context handed to new sessions.
const (
	DefaultDatabase  = "SNOWGLOBE"
	DefaultSchema    = "PUBLIC"
	DefaultWarehouse = "COMPUTE_WH"
	DefaultRole      = "ACCOUNTADMIN"
)

// ServerVersion is reported by /health and SELECT CURRENT_VERSION().
const ServerVersion = "0.1.0"

// Config is the full server configuration. Every field binds to an
// environment variable; flags exist mostly for local development.
type Config struct {
	Port      int    `long:"port" env:"PORT" default:"8084" description:"plaintext HTTP port"`
	HTTPSPort int    `long:"https-port" env:"HTTPS_PORT" default:"8443" description:"TLS port"`
	Host      string `long:"host" env:"HOST" default:"0.0.0.0" description:"bind address"`
	DataDir   string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"directory for catalog, engine and worksheet state"`

	EnableHTTPS bool   `long:"enable-https" env:"ENABLE_HTTPS" description:"serve TLS in addition to plaintext"`
	CertPath    string `long:"cert-path" env:"CERT_PATH" default:"./certs/cert.pem" description:"TLS certificate"`
	KeyPath     string `long:"key-path" env:"KEY_PATH" default:"./certs/key.pem" description:"TLS private key"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"logrus level"`

	QueryDeadlineSeconds int `long:"query-deadline-seconds" env:"QUERY_DEADLINE_SECONDS" default:"300" description:"wall-clock limit per statement"`
	SessionIdleSeconds   int `long:"session-idle-seconds" env:"SESSION_IDLE_SECONDS" default:"0" description:"idle session expiry, 0 disables"`
	ShutdownGraceSeconds int `long:"shutdown-grace-seconds" env:"SHUTDOWN_GRACE_SECONDS" default:"30" description:"grace period for in-flight requests"`

	HistoryCapacity   int `long:"history-capacity" env:"HISTORY_CAPACITY" default:"1000" description:"query history ring size"`
	LogBufferCapacity int `long:"log-buffer-capacity" env:"LOG_BUFFER_CAPACITY" default:"1000" description:"log ring size exposed at /api/logs"`
}

// Load parses the environment (and any CLI flags) into a Config.
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.HTTPSPort <= 0 || c.HTTPSPort > 65535 {
		return fmt.Errorf("invalid HTTPS_PORT %d", c.HTTPSPort)
	}
	if c.QueryDeadlineSeconds < 0 {
		return fmt.Errorf("QUERY_DEADLINE_SECONDS must be >= 0")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("HISTORY_CAPACITY must be > 0")
	}
	if c.LogBufferCapacity <= 0 {
		return fmt.Errorf("LOG_BUFFER_CAPACITY must be > 0")
	}
	return nil
}

// QueryDeadline returns the per-statement deadline, or 0 when disabled.
func (c *Config) QueryDeadline() time.Duration {
	return time.Duration(c.QueryDeadlineSeconds) * time.Second
}

// SessionIdle returns the idle expiry, or 0 when sessions never expire.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleSeconds) * time.Second
}

// ShutdownGrace returns the graceful shutdown window.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// CertFilesPresent reports whether both TLS files exist on disk.
func (c *Config) CertFilesPresent() bool {
	if _, err := os.Stat(c.CertPath); err != nil {
		return false
	}
	if _, err := os.Stat(c.KeyPath); err != nil {
		return false
	}
	return true
}
