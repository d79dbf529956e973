// Package config loads journey service settings from defaults, an optional
// YAML file, an optional .env file and the process environment, in that
// order of increasing precedence. CLI flags are applied on top by cmd/journey.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/logging"
	"github.com/nvandessel/journeygraph/internal/store"
)

// DefaultFileName is looked up in the project root when no config path is given.
const DefaultFileName = "journey.yaml"

// Config holds all settings for the journey service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	GraphPath    string `yaml:"graph_path"` // URL path of the journey graph endpoint
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	Watch        bool   `yaml:"watch"` // watch the file backend for out-of-band edits
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	RedisURL   string `yaml:"redis_url"`
	ReadPolicy string `yaml:"read_policy"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			GraphPath:    "/api/journey-graph",
			MaxBodyBytes: 10 << 20,
			Watch:        true,
		},
		Store: StoreConfig{
			Backend:    store.BackendFile,
			Name:       store.DefaultGraphName,
			ReadPolicy: string(journey.ReadPolicyRecover),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config for the project at root. If path is empty, root's
// journey.yaml is used when present; an explicit path must exist.
func Load(root, path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, DefaultFileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	env, err := readEnv(filepath.Join(root, ".env"))
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(env)

	return cfg, nil
}

// readEnv merges a .env file (if any) with the process environment, the
// latter taking precedence. The process environment is not modified.
func readEnv(dotenvPath string) (map[string]string, error) {
	env := map[string]string{}
	if _, err := os.Stat(dotenvPath); err == nil {
		fileEnv, err := godotenv.Read(dotenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", dotenvPath, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

var envKeys = []string{
	"JOURNEY_ADDR",
	"JOURNEY_BACKEND",
	"JOURNEY_GRAPH_PATH",
	"JOURNEY_GRAPH_NAME",
	"JOURNEY_READ_POLICY",
	"JOURNEY_LOG_LEVEL",
	"JOURNEY_LOG_FORMAT",
	"REDIS_URL",
}

func (c *Config) applyEnv(env map[string]string) {
	set := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	set("JOURNEY_ADDR", &c.Server.Addr)
	set("JOURNEY_BACKEND", &c.Store.Backend)
	set("JOURNEY_GRAPH_PATH", &c.Store.Path)
	set("JOURNEY_GRAPH_NAME", &c.Store.Name)
	set("JOURNEY_READ_POLICY", &c.Store.ReadPolicy)
	set("JOURNEY_LOG_LEVEL", &c.Logging.Level)
	set("JOURNEY_LOG_FORMAT", &c.Logging.Format)
	set("REDIS_URL", &c.Store.RedisURL)
}

// Validate checks that every setting has an accepted value.
func (c Config) Validate() error {
	var errs []error

	known := false
	for _, b := range store.Backends {
		if c.Store.Backend == b {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("store.backend %q: must be one of %v", c.Store.Backend, store.Backends))
	}
	if c.Store.Backend == store.BackendRedis && c.Store.RedisURL == "" {
		errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
	}
	if _, err := journey.ParseReadPolicy(c.Store.ReadPolicy); err != nil {
		errs = append(errs, fmt.Errorf("store.read_policy: %w", err))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format %q: must be one of %v", c.Logging.Format, logging.Formats))
	}
	if c.Server.GraphPath == "" || c.Server.GraphPath[0] != '/' {
		errs = append(errs, fmt.Errorf("server.graph_path %q: must start with /", c.Server.GraphPath))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive"))
	}

	return errors.Join(errs...)
}

// StoreOptions converts the store section for store.Open.
func (c Config) StoreOptions(root string) store.Options {
	return store.Options{
		Backend:  c.Store.Backend,
		Root:     root,
		Path:     c.Store.Path,
		Name:     c.Store.Name,
		RedisURL: c.Store.RedisURL,
	}
}
