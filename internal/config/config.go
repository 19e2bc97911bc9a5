// Package config loads the diagramd configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Snapshot store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DIAGRAM_"

// Redis configures the redis snapshot store and distributed locker.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Config is the server configuration.
type Config struct {
	Listen            string        `yaml:"listen"`
	Layout            string        `yaml:"layout"`
	ClientLayout      bool          `yaml:"client_layout"`
	ModelsDir         string        `yaml:"models_dir"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	Store             string        `yaml:"store"`
	StoreDir          string        `yaml:"store_dir"`
	EvictOnDisconnect bool          `yaml:"evict_on_disconnect"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	Redis             Redis         `yaml:"redis"`
	Snapshots         Snapshots     `yaml:"snapshots"`
}

// Snapshots configures how snapshots are transformed before they are stored.
type Snapshots struct {
	// EncryptionKey enables AES-256 encryption; 32 bytes, hex or base64 encoded.
	EncryptionKey string `yaml:"encryption_key"`

	// FallbackKeys decrypt snapshots written with retired keys.
	FallbackKeys []string `yaml:"fallback_keys"`

	// RedactKeys are patterns of option and property keys masked before saving.
	RedactKeys []string `yaml:"redact_keys"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen:          ":8080",
		Layout:          string(domain.LayoutAutomatic),
		ModelsDir:       "models",
		LogLevel:        "info",
		LogFormat:       logging.FormatAuto,
		Store:           StoreMemory,
		StoreDir:        ".diagram/sessions",
		ShutdownTimeout: 5 * time.Second,
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "diagram:session:",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"LISTEN":         &c.Listen,
		"LAYOUT":         &c.Layout,
		"MODELS_DIR":     &c.ModelsDir,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FORMAT":     &c.LogFormat,
		"STORE":          &c.Store,
		"STORE_DIR":      &c.StoreDir,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_PASSWORD": &c.Redis.Password,
		"REDIS_PREFIX":   &c.Redis.Prefix,
		"ENCRYPTION_KEY": &c.Snapshots.EncryptionKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"CLIENT_LAYOUT":       &c.ClientLayout,
		"EVICT_ON_DISCONNECT": &c.EvictOnDisconnect,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Redis.DB = db
	}
	if v, ok := lookup(EnvPrefix + "REDIS_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_TTL: %w", EnvPrefix, err)
		}
		c.Redis.TTL = ttl
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.LayoutKind(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	switch c.Store {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis store requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	for _, p := range c.Snapshots.RedactKeys {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid redact pattern %q: %w", p, err))
		}
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis.ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// LayoutKind returns the parsed layout policy.
func (c Config) LayoutKind() (domain.LayoutKind, error) {
	return domain.ParseLayoutKind(c.Layout)
}
