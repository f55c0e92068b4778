// Package config loads the kvserver configuration.
//
// Sources, lowest precedence first:
//  1. Default values
//  2. YAML file named by -config (or KVCACHE_CONFIG)
//  3. Environment variables: KVCACHE_ADDR, KVCACHE_NUM_SETS, ...
//  4. Command-line flags: -addr, -num-sets, ...
//
// Every flag has an environment twin: upper-case, "-" replaced by "_",
// prefixed with "KVCACHE_".
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultMetricsAddr    = ":9090"
	DefaultNumSets        = 100
	DefaultMaxElemsPerSet = 10
	DefaultRedisPrefix    = "kvcache"
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "KVCACHE_"

// ServerConfig holds every kvserver setting.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	NumSets        int    `yaml:"num_sets"`
	MaxElemsPerSet int    `yaml:"max_elems_per_set"`
	Policy         string `yaml:"policy"` // clock | lru | 2q
	Store          string `yaml:"store"`  // memory | redis
	RedisAddr      string `yaml:"redis_addr"`
	RedisPrefix    string `yaml:"redis_prefix"`

	// MetricsAddr serves /metrics and /debug/cache; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// SnapshotPath is restored on start and written on shutdown when set.
	SnapshotPath string `yaml:"snapshot_path"`

	Logger   string `yaml:"logger"`    // zap | logrus
	LogLevel string `yaml:"log_level"` // debug | info | warn | error

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxConns     int64         `yaml:"max_conns"` // 0 = unlimited
}

// Default returns the built-in configuration.
func Default() ServerConfig {
	return ServerConfig{
		Addr:           DefaultAddr,
		NumSets:        DefaultNumSets,
		MaxElemsPerSet: DefaultMaxElemsPerSet,
		Policy:         "clock",
		Store:          "memory",
		RedisAddr:      "localhost:6379",
		RedisPrefix:    DefaultRedisPrefix,
		MetricsAddr:    DefaultMetricsAddr,
		Logger:         "zap",
		LogLevel:       "info",
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// Load builds a ServerConfig from args (without the program name) and the
// environment seen through getenv (nil => os.Getenv). The result is validated.
func Load(name string, args []string, getenv func(string) string) (ServerConfig, error) {
	return load(name, args, getenv, os.Stderr)
}

// load is Load with the usage and flag error output sent to out.
func load(name string, args []string, getenv func(string) string, out io.Writer) (ServerConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	// First pass: only to find -config.
	var scratch ServerConfig
	var path string
	pre := flagSet(name, &scratch, &path)
	pre.SetOutput(io.Discard)
	if err := pre.Parse(args); err != nil {
		// Parse again with output on so -h prints usage and a bad flag
		// is reported once.
		var cfg ServerConfig
		fs := flagSet(name, &cfg, &path)
		fs.SetOutput(out)
		return ServerConfig{}, fs.Parse(args)
	}
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return ServerConfig{}, err
		}
	}

	fs := flagSet(name, &cfg, &path)
	fs.SetOutput(out)
	if err := applyEnv(fs, getenv); err != nil {
		return ServerConfig{}, err
	}
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func flagSet(name string, c *ServerConfig, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(path, "config", *path, "YAML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "TCP listen address")
	fs.IntVar(&c.NumSets, "num-sets", c.NumSets, "number of cache sets")
	fs.IntVar(&c.MaxElemsPerSet, "max-elems-per-set", c.MaxElemsPerSet, "entries per cache set")
	fs.StringVar(&c.Policy, "policy", c.Policy, "eviction policy: clock | lru | 2q")
	fs.StringVar(&c.Store, "store", c.Store, "backing table: memory | redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for -store redis")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "Redis key prefix")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve /metrics at addr; empty = disabled")
	fs.StringVar(&c.SnapshotPath, "snapshot", c.SnapshotPath, "snapshot file (.xml or .cbor) restored on start and written on shutdown")
	fs.StringVar(&c.Logger, "logger", c.Logger, "logger: zap | logrus")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug | info | warn | error")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "idle limit between requests")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "response write limit")
	fs.Int64Var(&c.MaxConns, "max-conns", c.MaxConns, "concurrent connection limit (0 = unlimited)")
	return fs
}

func applyEnv(fs *flag.FlagSet, getenv func(string) string) error {
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if f.Name == "config" {
			return
		}
		key := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v := getenv(key); v != "" {
			if err := fs.Set(f.Name, v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (c *ServerConfig) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be set"))
	}
	if c.NumSets < 1 {
		errs = append(errs, fmt.Errorf("num_sets must be positive: %d", c.NumSets))
	}
	if c.MaxElemsPerSet < 1 {
		errs = append(errs, fmt.Errorf("max_elems_per_set must be positive: %d", c.MaxElemsPerSet))
	}
	switch c.Policy {
	case "clock", "lru", "2q":
	default:
		errs = append(errs, fmt.Errorf("invalid policy: %q", c.Policy))
	}
	switch c.Store {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr must be set for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store: %q", c.Store))
	}
	switch c.Logger {
	case "zap", "logrus":
	default:
		errs = append(errs, fmt.Errorf("invalid logger: %q", c.Logger))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.LogLevel))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read timeout must be positive: %v", c.ReadTimeout))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write timeout must be positive: %v", c.WriteTimeout))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max conns must be non-negative: %d", c.MaxConns))
	}
	return errors.Join(errs...)
}
