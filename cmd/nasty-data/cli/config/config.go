package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/meigma/nastydata/internal/elastic"
	"github.com/meigma/nastydata/internal/pushshift"
)

// EnvPrefix prefixes environment overrides, e.g. NASTY_ELASTICSEARCH_PASSWORD.
const EnvPrefix = "NASTY"

// Config represents the nasty-data CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Progress      string              `mapstructure:"progress"`
	State         StateConfig         `mapstructure:"state"`
	Index         IndexConfig         `mapstructure:"index"`
	Pushshift     PushshiftConfig     `mapstructure:"pushshift"`
}

// ElasticsearchConfig holds cluster connection settings.
type ElasticsearchConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	CACrtPath      string        `mapstructure:"ca_crt_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryOnTimeout bool          `mapstructure:"retry_on_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	HTTPCompress   bool          `mapstructure:"http_compress"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// StateConfig holds the location of the state database.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// IndexConfig holds bulk indexing settings.
type IndexConfig struct {
	NumWorkers    int           `mapstructure:"num_workers"`
	FlushBytes    int           `mapstructure:"flush_bytes"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// PushshiftConfig holds download settings.
type PushshiftConfig struct {
	LinksURL    string        `mapstructure:"links_url"`
	CommentsURL string        `mapstructure:"comments_url"`
	Retries     int           `mapstructure:"retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// Progress modes.
const (
	ProgressAuto  = "auto"
	ProgressTTY   = "tty"
	ProgressPlain = "plain"
)

// SetDefaults registers the default of every key on v. Keys must be known
// to v for environment overrides to apply when unmarshaling. Durations are
// strings so written config files stay readable.
func SetDefaults(v *viper.Viper) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	es := elastic.DefaultConfig()
	retry := pushshift.DefaultRetryOptions()

	v.SetDefault("elasticsearch.host", es.Host)
	v.SetDefault("elasticsearch.port", es.Port)
	v.SetDefault("elasticsearch.user", es.User)
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.ca_crt_path", "")
	v.SetDefault("elasticsearch.timeout", es.Timeout.String())
	v.SetDefault("elasticsearch.retry_on_timeout", es.RetryOnTimeout)
	v.SetDefault("elasticsearch.max_retries", es.MaxRetries)
	v.SetDefault("elasticsearch.http_compress", es.HTTPCompress)
	v.SetDefault("logging.level", "info")
	v.SetDefault("progress", ProgressAuto)
	v.SetDefault("state.path", filepath.Join(stateDir, "state.db"))
	v.SetDefault("index.num_workers", 0)
	v.SetDefault("index.flush_bytes", 5<<20)
	v.SetDefault("index.flush_interval", (30 * time.Second).String())
	v.SetDefault("pushshift.links_url", pushshift.LinksURL)
	v.SetDefault("pushshift.comments_url", pushshift.CommentsURL)
	v.SetDefault("pushshift.retries", retry.Attempts)
	v.SetDefault("pushshift.backoff", retry.Backoff.String())
	return nil
}

// Load reads the configuration into v and returns it. An explicit file must
// exist; otherwise ./nasty.toml and then the XDG config file are tried and
// their absence is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := SetDefaults(v); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be checked by type alone.
func (c *Config) Validate() error {
	switch c.Progress {
	case ProgressAuto, ProgressTTY, ProgressPlain:
	default:
		return fmt.Errorf("invalid progress mode %q (expected auto, tty, plain)", c.Progress)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Index.NumWorkers < 0 {
		return fmt.Errorf("index.num_workers must not be negative, got %d", c.Index.NumWorkers)
	}
	return nil
}

// SlogLevel parses the level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid logging.level %q: %w", l.Level, err)
	}
	return level, nil
}

// Elastic converts the settings to a client configuration.
func (c ElasticsearchConfig) Elastic() elastic.Config {
	return elastic.Config{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		CACertPath:     c.CACrtPath,
		Timeout:        c.Timeout,
		RetryOnTimeout: c.RetryOnTimeout,
		MaxRetries:     c.MaxRetries,
		HTTPCompress:   c.HTTPCompress,
	}
}
