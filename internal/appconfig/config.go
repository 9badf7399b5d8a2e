package appconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// PlaceholderHost is substituted when no primary endpoint is configured so
// that a run still produces a report. It is expected to fail resolution.
const PlaceholderHost = "cluster0.example.mongodb.net"

const (
	LogModeConsole = "console"
	LogModeDebug   = "debug"
	LogModeJSON    = "json"
	LogModeFile    = "file"
)

const (
	defaultResolveTimeout         = 10 * time.Second
	defaultServerSelectionTimeout = 15 * time.Second
	defaultSocketTimeout          = 45 * time.Second
	defaultConnectTimeout         = 15 * time.Second
	defaultMaxPoolSize            = 10
	defaultWriteConcern           = "majority"
)

type MongoConfig struct {
	ServerSelectionTimeout string `json:"server_selection_timeout" yaml:"server_selection_timeout" toml:"server_selection_timeout" env:"MONGODOCTOR_SERVER_SELECTION_TIMEOUT"`
	SocketTimeout          string `json:"socket_timeout" yaml:"socket_timeout" toml:"socket_timeout" env:"MONGODOCTOR_SOCKET_TIMEOUT"`
	ConnectTimeout         string `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout" env:"MONGODOCTOR_CONNECT_TIMEOUT"`
	MaxPoolSize            uint64 `json:"max_pool_size" yaml:"max_pool_size" toml:"max_pool_size" env:"MONGODOCTOR_MAX_POOL_SIZE"`
	WriteConcern           string `json:"write_concern" yaml:"write_concern" toml:"write_concern" env:"MONGODOCTOR_WRITE_CONCERN"`
	ForceIPv4              bool   `json:"force_ipv4" yaml:"force_ipv4" toml:"force_ipv4" env:"MONGODOCTOR_FORCE_IPV4"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level" env:"MONGODOCTOR_LOG_LEVEL"`
	Mode       string `json:"mode" yaml:"mode" toml:"mode" env:"MONGODOCTOR_LOG_MODE"`
	FilePath   string `json:"file_path" yaml:"file_path" toml:"file_path" env:"MONGODOCTOR_LOG_FILE"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
}

type Config struct {
	// Primary is a hostname or a full mongodb+srv:// connection string.
	Primary string `json:"primary" yaml:"primary" toml:"primary" env:"MONGODB_URI"`
	// Fallback is an optional mongodb:// connection string.
	Fallback       string      `json:"fallback" yaml:"fallback" toml:"fallback" env:"MONGODB_URI_FALLBACK"`
	ResolveTimeout string      `json:"resolve_timeout" yaml:"resolve_timeout" toml:"resolve_timeout" env:"MONGODOCTOR_RESOLVE_TIMEOUT"`
	DNSServer      string      `json:"dns_server" yaml:"dns_server" toml:"dns_server" env:"MONGODOCTOR_DNS_SERVER"`
	LookupSRV      bool        `json:"lookup_srv" yaml:"lookup_srv" toml:"lookup_srv" env:"MONGODOCTOR_LOOKUP_SRV"`
	Mongo          MongoConfig `json:"mongo" yaml:"mongo" toml:"mongo"`
	Log            LogConfig   `json:"log" yaml:"log" toml:"log"`
}

func Default() Config {
	return Config{
		ResolveTimeout: defaultResolveTimeout.String(),
		LookupSRV:      true,
		Mongo: MongoConfig{
			ServerSelectionTimeout: defaultServerSelectionTimeout.String(),
			SocketTimeout:          defaultSocketTimeout.String(),
			ConnectTimeout:         defaultConnectTimeout.String(),
			MaxPoolSize:            defaultMaxPoolSize,
			WriteConcern:           defaultWriteConcern,
			ForceIPv4:              true,
		},
		Log: LogConfig{
			Level:      "warn",
			Mode:       LogModeConsole,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ConfigPath returns the configuration file to load: MONGODOCTOR_CONFIG when
// set, otherwise ".env" in the working directory when it exists, otherwise "".
func ConfigPath() string {
	if custom := strings.TrimSpace(os.Getenv("MONGODOCTOR_CONFIG")); custom != "" {
		return custom
	}
	if st, err := os.Stat(".env"); err == nil && !st.IsDir() {
		return ".env"
	}
	return ""
}

// Load layers defaults, the optional file at path, the environment and the
// legacy env aliases. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Default(), err
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Default(), err
	}
	applyEnvAliases(&cfg)
	return cfg.Normalize(), nil
}

func readFile(path string, cfg *Config) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if st.IsDir() {
		return errors.New("config path is a directory: " + path)
	}

	// dotenv files only fill variables the process does not already define.
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".env") || base == ".env" {
		return godotenv.Load(path)
	}
	return cleanenv.ReadConfig(path, cfg)
}

func applyEnvAliases(cfg *Config) {
	if cfg.Primary == "" {
		if v := getEnv("MONGODB_SRV_URI", "MONGODB_HOST"); v != "" {
			cfg.Primary = v
		}
	}
	if cfg.Fallback == "" {
		if v := getEnv("MONGODB_URI_DIRECT", "MONGODB_STANDARD_URI"); v != "" {
			cfg.Fallback = v
		}
	}
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func (c Config) Normalize() Config {
	c.Primary = strings.TrimSpace(c.Primary)
	c.Fallback = strings.TrimSpace(c.Fallback)
	c.DNSServer = strings.TrimSpace(c.DNSServer)
	c.ResolveTimeout = strings.TrimSpace(c.ResolveTimeout)
	if c.ResolveTimeout == "" {
		c.ResolveTimeout = defaultResolveTimeout.String()
	}

	m := &c.Mongo
	m.ServerSelectionTimeout = strings.TrimSpace(m.ServerSelectionTimeout)
	if m.ServerSelectionTimeout == "" {
		m.ServerSelectionTimeout = defaultServerSelectionTimeout.String()
	}
	m.SocketTimeout = strings.TrimSpace(m.SocketTimeout)
	if m.SocketTimeout == "" {
		m.SocketTimeout = defaultSocketTimeout.String()
	}
	m.ConnectTimeout = strings.TrimSpace(m.ConnectTimeout)
	if m.ConnectTimeout == "" {
		m.ConnectTimeout = defaultConnectTimeout.String()
	}
	if m.MaxPoolSize == 0 {
		m.MaxPoolSize = defaultMaxPoolSize
	}
	m.WriteConcern = strings.ToLower(strings.TrimSpace(m.WriteConcern))
	if m.WriteConcern == "" {
		m.WriteConcern = defaultWriteConcern
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Mode = strings.ToLower(strings.TrimSpace(c.Log.Mode))
	if c.Log.Mode == "" {
		c.Log.Mode = LogModeConsole
	}
	c.Log.FilePath = strings.TrimSpace(c.Log.FilePath)
	return c
}

// PrimaryOrPlaceholder returns the configured primary endpoint, or
// PlaceholderHost when none is configured.
func (c Config) PrimaryOrPlaceholder() string {
	if strings.TrimSpace(c.Primary) == "" {
		return PlaceholderHost
	}
	return c.Primary
}

func (c Config) UsesPlaceholder() bool {
	return strings.TrimSpace(c.Primary) == ""
}

func (c Config) IsDebug() bool {
	return strings.EqualFold(c.Log.Mode, LogModeDebug)
}

func (c Config) ResolveTimeoutDuration() time.Duration {
	return durationOr(c.ResolveTimeout, defaultResolveTimeout)
}

func (m MongoConfig) ServerSelectionTimeoutDuration() time.Duration {
	return durationOr(m.ServerSelectionTimeout, defaultServerSelectionTimeout)
}

func (m MongoConfig) SocketTimeoutDuration() time.Duration {
	return durationOr(m.SocketTimeout, defaultSocketTimeout)
}

func (m MongoConfig) ConnectTimeoutDuration() time.Duration {
	return durationOr(m.ConnectTimeout, defaultConnectTimeout)
}

// WriteConcernW returns the write concern as either "majority" or a node count.
func (m MongoConfig) WriteConcernW() (majority bool, nodes int) {
	if m.WriteConcern == "" || strings.EqualFold(m.WriteConcern, defaultWriteConcern) {
		return true, 0
	}
	n, err := strconv.Atoi(m.WriteConcern)
	if err != nil || n < 0 {
		return true, 0
	}
	return false, n
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
