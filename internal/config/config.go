package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/formsync-dev/formsync/pkg/submit"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "formsync.json"

	// DefaultAddr is the default server listen address.
	DefaultAddr = ":8080"

	// DefaultMaxBodyBytes is the default snapshot body limit.
	DefaultMaxBodyBytes = 1 << 20

	// DefaultTimeoutSeconds is the default submission timeout.
	DefaultTimeoutSeconds = 30
)

// Store backends selectable in formsync.json.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Config represents the complete formsync.json configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Submit contains upstream submission settings.
	Submit SubmitConfig `json:"submit,omitempty"`

	// Store contains snapshot persistence settings.
	Store StoreConfig `json:"store,omitempty"`

	// Log contains logging settings.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr,omitempty"`

	// MaxBodyBytes limits snapshot request bodies.
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty"`
}

// SubmitConfig contains upstream submission settings.
type SubmitConfig struct {
	// Endpoint is the URL snapshots are submitted to.
	Endpoint string `json:"endpoint,omitempty"`

	// Encoding is the wire encoding: json, form, multipart, or merge-patch.
	Encoding string `json:"encoding,omitempty"`

	// TimeoutSeconds bounds each submission request.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

// StoreConfig contains snapshot persistence settings.
type StoreConfig struct {
	// Backend selects the store: memory, redis, or s3.
	Backend string `json:"backend,omitempty"`

	// S3 configures the s3 backend.
	S3 S3Config `json:"s3,omitempty"`

	// Redis configures the redis backend.
	Redis RedisConfig `json:"redis,omitempty"`
}

// S3Config contains s3 backend settings.
type S3Config struct {
	// Bucket is the bucket snapshots are stored in.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the key prefix (default "forms/").
	Prefix string `json:"prefix,omitempty"`

	// Region overrides the SDK's resolved AWS region.
	Region string `json:"region,omitempty"`
}

// RedisConfig contains redis backend settings.
type RedisConfig struct {
	// Addr is the redis server address.
	Addr string `json:"addr,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `json:"level,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Submit: SubmitConfig{
			Encoding:       "json",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for formsync.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads configuration from the directory, falling back to
// defaults when no formsync.json exists there.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config: no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.Submit.Encoding == "" {
		c.Submit.Encoding = "json"
	}
	if c.Submit.TimeoutSeconds == 0 {
		c.Submit.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Backend == BackendS3 && c.Store.S3.Prefix == "" {
		c.Store.S3.Prefix = "forms/"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := submit.ParseEncoding(c.Submit.Encoding); err != nil {
		return fmt.Errorf("config: submit.encoding: %w", err)
	}
	if c.Submit.TimeoutSeconds < 0 {
		return fmt.Errorf("config: submit.timeoutSeconds must not be negative")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("config: store.redis.addr is required for the redis backend")
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("config: store.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}

	return nil
}

// Encoding returns the parsed submission encoding.
func (c *Config) Encoding() (submit.Encoding, error) {
	return submit.ParseEncoding(c.Submit.Encoding)
}

// SubmitTimeout returns the submission timeout as a duration.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Submit.TimeoutSeconds) * time.Second
}

// LogLevel maps the configured level to a slog.Level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing formsync.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no %s found in %s or any parent directory", ConfigFileName, startDir)
		}
		dir = parent
	}
}
