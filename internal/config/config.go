package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"devon-cli/internal/store"
)

const (
	DefaultAPIURL      = "http://localhost:8000"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultPageSize    = 20
	MaxPageSize        = 100
)

// Config is the resolved runtime configuration.
//
// Precedence: flags, then DEVON_* env vars, then the config file, then defaults.
type Config struct {
	APIURL      string
	DataDir     string
	LogLevel    string
	LogFile     string
	HTTPTimeout time.Duration
	PageSize    int
	Drafts      DraftsConfig

	// File is the config file actually read, empty when none was found.
	File string
}

type DraftsConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// FlagKeys maps viper keys to the persistent flag names that override them.
var FlagKeys = map[string]string{
	"api_url":   "api",
	"data_dir":  "data-dir",
	"log_level": "log-level",
	"log_file":  "log-file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("drafts.ttl", store.DefaultRetention.TTL)
	v.SetDefault("drafts.max_entries", store.DefaultRetention.MaxEntries)
}

// Load resolves configuration. configFile may be empty, in which case
// <data dir>/config.yaml is read when present.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEVON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	used := ""
	configFile = strings.TrimSpace(configFile)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		used = configFile
	}

	dataDir, err := resolveDataDir(v)
	if err != nil {
		return nil, err
	}
	if used == "" {
		def := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(def); err == nil {
			v.SetConfigFile(def)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", def, err)
			}
			used = def
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		// The file may set data_dir itself.
		if dataDir, err = resolveDataDir(v); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		APIURL:      strings.TrimRight(strings.TrimSpace(v.GetString("api_url")), "/"),
		DataDir:     dataDir,
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFile:     strings.TrimSpace(v.GetString("log_file")),
		HTTPTimeout: v.GetDuration("http_timeout"),
		PageSize:    v.GetInt("page_size"),
		Drafts: DraftsConfig{
			TTL:        v.GetDuration("drafts.ttl"),
			MaxEntries: v.GetInt("drafts.max_entries"),
		},
		File: used,
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api url is empty")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "devon.log")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	cfg.PageSize = ClampPageSize(cfg.PageSize)
	return cfg, nil
}

// resolveDataDir picks data_dir from flags, env or a file already read,
// falling back to the platform default.
func resolveDataDir(v *viper.Viper) (string, error) {
	if d := strings.TrimSpace(v.GetString("data_dir")); d != "" {
		return d, nil
	}
	return store.DataDir()
}

// Retention converts the drafts section to a store policy.
func (c *Config) Retention() store.RetentionPolicy {
	return store.RetentionPolicy{TTL: c.Drafts.TTL, MaxEntries: c.Drafts.MaxEntries}
}

// ClampPageSize keeps a page size within what the API accepts.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
