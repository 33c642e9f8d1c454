// Package config loads connection and pool settings from a YAML file
// and, optionally, watches that file for changes so the pool's
// capacity can be hot-reloaded without a restart. Ground: db-bouncer's
// internal/config (Load/substituteEnvVars/Watcher), adapted from its
// multi-tenant shape to this system's single-pool connection config.
package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/sqly-go/sqly/pool"
)

// Config is the top-level connection/pool configuration file shape.
type Config struct {
	Addr           string        `yaml:"addr"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	MaxConnections int           `yaml:"max_connections"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// PoolOptions converts Config into pool.Options. TLS is always nil: the
// spec's Non-goals exclude TLS entirely, so there is no yaml field for
// it to carry.
func (c Config) PoolOptions() pool.Options {
	return pool.Options{
		Addr:           c.Addr,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		TLS:            (*tls.Config)(nil),
		MaxConnections: c.MaxConnections,
	}
}

// Redacted returns a copy of c with Password masked, safe to log.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} occurrences with the named
// environment variable's value, leaving the pattern intact if the
// variable is unset (ground: db-bouncer's config.substituteEnvVars,
// used here so a password need not be written in plaintext on disk).
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if v, ok := os.LookupEnv(string(name)); ok {
			return []byte(v)
		}
		return match
	})
}

// Load reads and parses path as YAML, applying defaults and validating
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if cfg.User == "" {
		return fmt.Errorf("user is required")
	}
	if cfg.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", cfg.MaxConnections)
	}
	return nil
}

// Watcher watches a config file for writes and invokes a callback with
// the reloaded Config, debounced so a burst of writes from an editor
// triggers one reload.
type Watcher struct {
	path     string
	callback func(*Config)
	log      *slog.Logger
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// Watch starts watching path, calling callback on every successful
// reload. The initial load is the caller's responsibility via Load;
// Watch only reacts to subsequent writes.
func Watch(path string, log *slog.Logger, callback func(*Config)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{path: path, callback: callback, log: log, watcher: w, stopCh: make(chan struct{})}
	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Warn("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		cw.log.Warn("config hot-reload failed", "path", cw.path, "err", err)
		return
	}
	cw.log.Info("config reloaded", "path", cw.path, "max_connections", cfg.MaxConnections)
	cw.callback(cfg)
}

// Stop stops watching and releases the underlying fsnotify watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}

// ReloadPoolCapacity returns a callback suitable for Watch that pushes
// a reloaded Config's MaxConnections into p (ground: the spec's
// "fsnotify-driven watcher hot-reloads the pool's max_connections").
func ReloadPoolCapacity(p *pool.Pool) func(*Config) {
	return func(cfg *Config) {
		p.Reload(cfg.MaxConnections)
	}
}
