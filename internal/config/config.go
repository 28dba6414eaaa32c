package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultName         = "postgres"
	DefaultUser         = "postgres"
	DefaultPassword     = "postgres"
	DefaultHost         = "localhost"
	DefaultPort         = 5432
	DefaultSSLMode      = "prefer"
	DefaultAdvisoryLock = true
	DefaultLogLevel     = "WARNING"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	Name             string
	User             string
	Password         string
	Host             string
	Port             int
	SSLMode          string
	ScriptDirectory  string
	AdvisoryLock     bool
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	LogLevel         string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	Name             string `yaml:"name"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	SSLMode          string `yaml:"sslmode"`
	ScriptDirectory  string `yaml:"script_directory"`
	AdvisoryLock     *bool  `yaml:"advisory_lock"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	LogLevel         string `yaml:"log_level"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Name:         DefaultName,
		User:         DefaultUser,
		Password:     DefaultPassword,
		Host:         DefaultHost,
		Port:         DefaultPort,
		SSLMode:      DefaultSSLMode,
		AdvisoryLock: DefaultAdvisoryLock,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.Name, raw.Name)
	setString(&cfg.User, raw.User)
	setString(&cfg.Password, raw.Password)
	setString(&cfg.Host, raw.Host)
	setString(&cfg.SSLMode, raw.SSLMode)
	setString(&cfg.ScriptDirectory, raw.ScriptDirectory)
	setString(&cfg.LogLevel, raw.LogLevel)

	if raw.Port != 0 {
		cfg.Port = raw.Port
	}

	if raw.AdvisoryLock != nil {
		cfg.AdvisoryLock = *raw.AdvisoryLock
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	return cfg, nil
}

// MergeEnv overrides config fields from PG_* environment variables.
// Unparseable numeric, boolean, or duration values leave the field unchanged.
func MergeEnv(cfg *Config) {
	setString(&cfg.DatabaseURL, os.Getenv("PG_DATABASE_URL"))
	setString(&cfg.Name, os.Getenv("PG_NAME"))
	setString(&cfg.User, os.Getenv("PG_USER"))
	setString(&cfg.Password, os.Getenv("PG_PASSWORD"))
	setString(&cfg.Host, os.Getenv("PG_HOST"))
	setString(&cfg.SSLMode, os.Getenv("PG_SSLMODE"))
	setString(&cfg.ScriptDirectory, os.Getenv("PG_SCRIPT_DIRECTORY"))
	setString(&cfg.LogLevel, os.Getenv("PG_LOG_LEVEL"))

	if v := os.Getenv("PG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}

	if v := os.Getenv("PG_ADVISORY_LOCK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AdvisoryLock = b
		}
	}

	if v := os.Getenv("PG_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("PG_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}
}

// DSN returns the connection string: DatabaseURL when set, otherwise a
// postgres:// URL built from the discrete fields. A Host starting with "/"
// is a Unix socket directory and is passed as the host query parameter.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := &url.URL{
		Scheme: "postgres",
		Path:   "/" + c.Name,
	}

	q := url.Values{}

	// A socket directory cannot be a URL host; libpq and pgx take it from
	// the host parameter instead.
	if strings.HasPrefix(c.Host, "/") {
		q.Set("host", c.Host)
		q.Set("port", strconv.Itoa(c.Port))
	} else {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}

	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}

	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}

	u.RawQuery = q.Encode()

	return u.String()
}

// LoggingSpec returns the loggo configuration string for the log level.
func (c *Config) LoggingSpec() string {
	return "<root>=" + strings.ToUpper(c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
