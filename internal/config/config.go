// Package config loads the dashreq configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stdutil/dashhttp"
)

// Environment overrides
const (
	EnvDevPath   = "DASHHTTP_DEV_PATH"
	EnvProdPath  = "DASHHTTP_PROD_PATH"
	EnvRedisAddr = "DASHHTTP_REDIS_ADDR"
	EnvJWTSecret = "DASHHTTP_JWT_SECRET"
	EnvLogLevel  = "DASHHTTP_LOG_LEVEL"
	EnvTimeOut   = "DASHHTTP_TIMEOUT"
)

// Session backends
const (
	SessionNone  = "none"
	SessionFile  = "file"
	SessionRedis = "redis"
	SessionJWT   = "jwt"
)

type (
	// Config is the root configuration
	Config struct {
		HTTP    HTTPConfig    `yaml:"http"`
		Origin  OriginConfig  `yaml:"origin"`
		Session SessionConfig `yaml:"session"`
		Script  ScriptConfig  `yaml:"script"`
		Log     LogConfig     `yaml:"log"`
		Server  ServerConfig  `yaml:"server"`
	}

	// HTTPConfig configures the transport
	HTTPConfig struct {
		TimeOut    int  `yaml:"timeout"` // seconds
		Compressed bool `yaml:"compressed"`
	}

	// OriginConfig names the base paths of the own backend
	OriginConfig struct {
		DevPath   string `yaml:"dev_path"`
		ProdPath  string `yaml:"prod_path"`
		GuardMode string `yaml:"guard_mode"` // any or all
	}

	// SessionConfig selects where the session comes from
	SessionConfig struct {
		Backend       string `yaml:"backend"` // none, file, redis or jwt
		Dir           string `yaml:"dir"`
		Key           string `yaml:"key"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		JWTSecret     string `yaml:"jwt_secret"`
		ValidateTimes bool   `yaml:"validate_times"`
		TokenName     string `yaml:"token_name"`
	}

	// ScriptConfig configures scripted values
	ScriptConfig struct {
		CacheSize int            `yaml:"cache_size"`
		Env       map[string]any `yaml:"env"`
	}

	// LogConfig configures logging
	LogConfig struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"` // json or console
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // megabytes
		MaxAge     int    `yaml:"max_age"`  // days
		MaxBackups int    `yaml:"max_backups"`
	}

	// ServerConfig configures the preview server
	ServerConfig struct {
		Addr string `yaml:"addr"`
	}
)

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			TimeOut: 30,
		},
		Origin: OriginConfig{
			GuardMode: string(dashhttp.GuardAny),
		},
		Session: SessionConfig{
			Backend:       SessionNone,
			Dir:           ".",
			ValidateTimes: true,
		},
		Script: ScriptConfig{
			CacheSize: 256,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDevPath); ok {
		c.Origin.DevPath = v
	}
	if v, ok := lookup(EnvProdPath); ok {
		c.Origin.ProdPath = v
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		c.Session.RedisAddr = v
	}
	if v, ok := lookup(EnvJWTSecret); ok {
		c.Session.JWTSecret = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvTimeOut); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeOut, err)
		}
		c.HTTP.TimeOut = n
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.TimeOut < 0 {
		errs = append(errs, fmt.Errorf("http.timeout must not be negative"))
	}
	if !dashhttp.GuardMode(c.Origin.GuardMode).Valid() {
		errs = append(errs, fmt.Errorf("origin.guard_mode %q must be any or all", c.Origin.GuardMode))
	}
	switch c.Session.Backend {
	case SessionNone, SessionFile:
	case SessionRedis:
		if c.Session.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("session.redis_addr is required for the redis backend"))
		}
	case SessionJWT:
		if c.Session.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("session.jwt_secret is required for the jwt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend %q is unknown", c.Session.Backend))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}
