// Package config loads manager settings from YAML with environment
// overrides.
//
//	OBJGRAPH_DRIVER:   sqlite|pebble|postgres|memory (default sqlite)
//	OBJGRAPH_DIR:      directory holding the store file (default ".")
//	OBJGRAPH_DSN:      PostgreSQL DSN when driver=postgres
//	OBJGRAPH_APP_ID:   application identifier naming the store file
//	OBJGRAPH_LOG_FILE: append-only error log (default stderr)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Driver identifies a backing store implementation.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPebble   Driver = "pebble"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory" // in-process only, nothing persists
)

// IDScheme selects how new object identifiers are generated.
type IDScheme string

const (
	IDsUUIDv7 IDScheme = "uuid7"
	IDsUUIDv4 IDScheme = "uuid4"
)

// Migration mirrors the store's automatic migration switches.
type Migration struct {
	Automatic    bool `yaml:"automatic"`
	InferMapping bool `yaml:"infer_mapping"`
}

// Config holds everything a manager needs to bootstrap its store.
type Config struct {
	AppID      string    `yaml:"app_id"`
	Dir        string    `yaml:"dir"`
	Driver     Driver    `yaml:"driver"`
	DSN        string    `yaml:"dsn"`
	SchemaDirs []string  `yaml:"schema_dirs"`
	LogFile    string    `yaml:"log_file"`
	Migration  Migration `yaml:"migration"`
	IDs        IDScheme  `yaml:"ids"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		AppID:     "objgraph",
		Dir:       ".",
		Driver:    DriverSQLite,
		Migration: Migration{Automatic: true, InferMapping: true},
		IDs:       IDsUUIDv7,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		// Relative directories are relative to the config file.
		base := filepath.Dir(path)
		for i, d := range cfg.SchemaDirs {
			if !filepath.IsAbs(d) {
				cfg.SchemaDirs[i] = filepath.Join(base, d)
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the OBJGRAPH_* variables lookup finds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	driver := string(c.Driver)
	set("OBJGRAPH_DRIVER", &driver)
	c.Driver = Driver(driver)
	set("OBJGRAPH_DIR", &c.Dir)
	set("OBJGRAPH_DSN", &c.DSN)
	set("OBJGRAPH_APP_ID", &c.AppID)
	set("OBJGRAPH_LOG_FILE", &c.LogFile)
}

var appIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate reports settings that cannot name a store.
func (c Config) Validate() error {
	var errs []error
	if !appIDPattern.MatchString(c.AppID) {
		errs = append(errs, fmt.Errorf("app_id %q must be a file-name-safe identifier", c.AppID))
	}
	switch c.Driver {
	case DriverSQLite, DriverPebble, DriverMemory:
	case DriverPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("driver postgres requires dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	switch c.IDs {
	case "", IDsUUIDv7, IDsUUIDv4:
	default:
		errs = append(errs, fmt.Errorf("unknown id scheme %q", c.IDs))
	}
	return errors.Join(errs...)
}

// Location derives the store location from the application identifier.
// For postgres it is the DSN; for memory a name unique to the app.
func (c Config) Location() string {
	switch c.Driver {
	case DriverPostgres:
		return c.DSN
	case DriverMemory:
		return "memory:" + c.AppID
	case DriverPebble:
		return filepath.Join(c.Dir, c.AppID+".pebble")
	default:
		return filepath.Join(c.Dir, c.AppID+".sqlite")
	}
}
