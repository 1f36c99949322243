package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/memval"
	"github.com/vango-dev/memval/pkg/storage"
)

const (
	// ConfigName is the base name of the configuration file.
	ConfigName = "memval"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "MEMVAL"

	// DefaultBackend is the default storage backend.
	DefaultBackend = "bolt"

	// DefaultPath is the default bolt file.
	DefaultPath = "memval.db"

	// DefaultAddr is the default live server address.
	DefaultAddr = ":7070"

	// DefaultSecretEnv names the variable holding the sealing secret.
	DefaultSecretEnv = "MEMVAL_SECRET"

	// DefaultTimeout bounds each storage operation.
	DefaultTimeout = 5 * time.Second
)

// Backends lists the supported storage backends.
var Backends = []string{"memory", "bolt", "sqlite", "s3"}

// Config is the complete memval configuration.
type Config struct {
	// Storage selects and configures the backend.
	Storage StorageConfig `mapstructure:"storage"`

	// Server configures `memval serve`.
	Server ServerConfig `mapstructure:"server"`

	// Warnings enables the warning channel.
	Warnings bool `mapstructure:"warnings"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig configures the storage backend.
type StorageConfig struct {
	Backend    string        `mapstructure:"backend"`
	Path       string        `mapstructure:"path"`
	Bucket     string        `mapstructure:"bucket"`
	Table      string        `mapstructure:"table"`
	Prefix     string        `mapstructure:"prefix"`
	Codec      string        `mapstructure:"codec"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Secure     bool          `mapstructure:"secure"`
	SecretEnv  string        `mapstructure:"secret_env"`
	Salt       string        `mapstructure:"salt"`
	Instrument bool          `mapstructure:"instrument"`
	S3         S3Config      `mapstructure:"s3"`
}

// S3Config configures the s3 backend. Credentials come from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// ServerConfig configures the live server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// NewViper returns a viper instance with defaults and environment binding.
// The CLI binds its flags on it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("storage.backend", DefaultBackend)
	v.SetDefault("storage.path", DefaultPath)
	v.SetDefault("storage.bucket", storage.DefaultBoltBucket)
	v.SetDefault("storage.table", storage.DefaultSQLTable)
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.codec", "json")
	v.SetDefault("storage.timeout", DefaultTimeout)
	v.SetDefault("storage.secure", false)
	v.SetDefault("storage.secret_env", DefaultSecretEnv)
	v.SetDefault("storage.salt", "")
	v.SetDefault("storage.instrument", true)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("warnings", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration into v and decodes it.
// With an empty path a missing memval.yaml is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("M121").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Check the --config path or remove the flag to use defaults")
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "memval"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.New("M120").
				WithSuggestion("Check that the configuration file is valid YAML").
				Wrap(err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("M120").Wrap(err)
	}
	cfg.configPath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration built from defaults and the environment.
func Default() *Config {
	cfg := &Config{}
	v := NewViper()
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Path returns the path where the config was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Storage.Backend) {
		return errors.New("M122").
			WithDetail(fmt.Sprintf("Unknown storage backend %q", c.Storage.Backend)).
			WithSuggestion("Use one of: " + strings.Join(Backends, ", "))
	}
	if _, ok := memval.CodecByName(c.Storage.Codec); !ok {
		return errors.New("M122").
			WithDetail(fmt.Sprintf("Unknown codec %q", c.Storage.Codec)).
			WithSuggestion("Use json or cbor")
	}
	if c.Storage.Timeout < 0 {
		return errors.New("M122").
			WithDetail("storage.timeout must not be negative")
	}
	switch c.Storage.Backend {
	case "bolt", "sqlite":
		if c.Storage.Path == "" {
			return errors.New("M122").
				WithDetail("storage.path is required for the " + c.Storage.Backend + " backend")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("M122").
				WithDetail("storage.bucket is required for the s3 backend")
		}
	}
	if c.Storage.Secure && c.Storage.SecretEnv == "" {
		return errors.New("M123").
			WithDetail("storage.secret_env must name the variable holding the secret")
	}
	if c.Server.Addr == "" {
		return errors.New("M122").
			WithDetail("server.addr must not be empty")
	}
	return nil
}

// Secret returns the sealing secret from the environment.
func (c *Config) Secret() ([]byte, error) {
	secret := os.Getenv(c.Storage.SecretEnv)
	if len(secret) < storage.MinSecretSize {
		return nil, errors.New("M123").
			WithDetail(fmt.Sprintf("%s must hold at least %d bytes", c.Storage.SecretEnv, storage.MinSecretSize)).
			WithExample("export " + c.Storage.SecretEnv + "=$(openssl rand -hex 32)")
	}
	return []byte(secret), nil
}

// Codec returns the configured codec.
func (c *Config) Codec() memval.Codec {
	codec, ok := memval.CodecByName(c.Storage.Codec)
	if !ok {
		return memval.JSON
	}
	return codec
}
