// Package config assembles the service configuration from defaults, an
// optional YAML file, the environment and command-line flags, in increasing
// order of precedence.
package config

import (
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bfhl/bfhlsvc/pkg/ai"
)

// Config is built once at startup and passed to every component that needs
// it. Nothing reads the environment after Load returns.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	DebugAddr       string        `yaml:"debug_addr"`
	OfficialEmail   string        `yaml:"official_email"`
	LogLevel        string        `yaml:"log_level"`
	CORSOrigin      string        `yaml:"cors_origin"`
	MaxFibonacci    int           `yaml:"fibonacci_max"`
	MaxBodyBytes    int64         `yaml:"body_max_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ZipkinURL       string        `yaml:"zipkin_url"`

	GeminiAPIKey     string        `yaml:"gemini_api_key"`
	GeminiModel      string        `yaml:"gemini_model"`
	GeminiBaseURL    string        `yaml:"gemini_base_url"`
	GeminiAPIVersion string        `yaml:"gemini_api_version"`
	AITimeout        time.Duration `yaml:"ai_timeout"`
	BreakerFailures  int           `yaml:"breaker_failures"` // 0 disables the breaker
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		HTTPAddr:         ":3000",
		DebugAddr:        ":8080",
		OfficialEmail:    "chaitanya0316.be23@chitkara.edu.in",
		LogLevel:         "info",
		MaxFibonacci:     10000,
		MaxBodyBytes:     100 << 10,
		ShutdownTimeout:  10 * time.Second,
		GeminiModel:      ai.DefaultModel,
		GeminiAPIVersion: ai.DefaultAPIVersion,
		AITimeout:        15 * time.Second,
		BreakerCooldown:  30 * time.Second,
	}
}

// Load builds a Config from args (without the program name) and the
// environment as seen through getenv. The result has been validated.
func Load(args []string, getenv func(string) string) (Config, error) {
	// The first pass only finds the config file; the second applies flags
	// on top of the file and the environment.
	probe := Default()
	path := getenv("BFHL_CONFIG")
	fs := newFlagSet(&probe, &path)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fs.SetOutput(os.Stderr)
			fs.Usage()
		}
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := newFlagSet(&cfg, &path).Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(c *Config, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet("bfhlsvc", flag.ContinueOnError)
	fs.StringVar(path, "config", *path, "YAML configuration file")
	fs.StringVar(&c.HTTPAddr, "http.addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.DebugAddr, "debug.addr", c.DebugAddr, "Debug and metrics listen address")
	fs.StringVar(&c.OfficialEmail, "email", c.OfficialEmail, "Official email stamped on every response")
	fs.StringVar(&c.LogLevel, "log.level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.CORSOrigin, "cors.origin", c.CORSOrigin, "Access-Control-Allow-Origin value; empty disables CORS")
	fs.IntVar(&c.MaxFibonacci, "fibonacci.max", c.MaxFibonacci, "Largest accepted fibonacci count")
	fs.Int64Var(&c.MaxBodyBytes, "body.max", c.MaxBodyBytes, "Largest accepted request body in bytes")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown.timeout", c.ShutdownTimeout, "Graceful shutdown timeout")
	fs.StringVar(&c.ZipkinURL, "zipkin.url", c.ZipkinURL, "Zipkin collector URL e.g. http://localhost:9411/api/v2/spans")
	fs.StringVar(&c.GeminiAPIKey, "gemini.key", c.GeminiAPIKey, "Gemini API key")
	fs.StringVar(&c.GeminiModel, "gemini.model", c.GeminiModel, "Gemini model")
	fs.StringVar(&c.GeminiBaseURL, "gemini.url", c.GeminiBaseURL, "Gemini API base URL; empty for the SDK default")
	fs.StringVar(&c.GeminiAPIVersion, "gemini.version", c.GeminiAPIVersion, "Gemini API version")
	fs.DurationVar(&c.AITimeout, "ai.timeout", c.AITimeout, "Timeout for one call to the answering service")
	fs.IntVar(&c.BreakerFailures, "ai.breaker.failures", c.BreakerFailures, "Consecutive failures that open the circuit breaker; 0 disables it")
	fs.DurationVar(&c.BreakerCooldown, "ai.breaker.cooldown", c.BreakerCooldown, "How long the circuit breaker stays open")
	return fs
}

func (c *Config) loadFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func (c *Config) loadEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + port
	}
	c.DebugAddr = envString(getenv, "DEBUG_ADDR", c.DebugAddr)
	c.OfficialEmail = envString(getenv, "OFFICIAL_EMAIL", c.OfficialEmail)
	c.LogLevel = envString(getenv, "LOG_LEVEL", c.LogLevel)
	c.CORSOrigin = envString(getenv, "CORS_ORIGIN", c.CORSOrigin)
	c.ZipkinURL = envString(getenv, "ZIPKIN_URL", c.ZipkinURL)
	c.GeminiAPIKey = envString(getenv, "GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = envString(getenv, "GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = envString(getenv, "GEMINI_BASE_URL", c.GeminiBaseURL)
	c.GeminiAPIVersion = envString(getenv, "GEMINI_API_VERSION", c.GeminiAPIVersion)

	var err error
	if c.MaxFibonacci, err = envInt(getenv, "FIBONACCI_MAX", c.MaxFibonacci); err != nil {
		return err
	}
	if c.BreakerFailures, err = envInt(getenv, "AI_BREAKER_FAILURES", c.BreakerFailures); err != nil {
		return err
	}
	if v := getenv("BODY_MAX_BYTES"); v != "" {
		if c.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return errors.Wrap(err, "BODY_MAX_BYTES")
		}
	}
	for name, d := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":    &c.ShutdownTimeout,
		"AI_TIMEOUT":          &c.AITimeout,
		"AI_BREAKER_COOLDOWN": &c.BreakerCooldown,
	} {
		if v := getenv(name); v != "" {
			if *d, err = time.ParseDuration(v); err != nil {
				return errors.Wrap(err, name)
			}
		}
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return errors.New("HTTP listen address is required")
	case c.DebugAddr == "":
		return errors.New("debug listen address is required")
	case c.OfficialEmail == "":
		return errors.New("official email is required")
	case c.MaxFibonacci <= 0:
		return errors.New("fibonacci maximum must be positive")
	case c.MaxBodyBytes <= 0:
		return errors.New("body size limit must be positive")
	case c.AITimeout <= 0:
		return errors.New("AI timeout must be positive")
	case c.ShutdownTimeout <= 0:
		return errors.New("shutdown timeout must be positive")
	case c.BreakerFailures < 0:
		return errors.New("breaker failure threshold must not be negative")
	case c.BreakerFailures > 0 && c.BreakerCooldown <= 0:
		return errors.New("breaker cooldown must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func envString(getenv func(string) string, env, fallback string) string {
	e := getenv(env)
	if e == "" {
		return fallback
	}
	return e
}

func envInt(getenv func(string) string, env string, fallback int) (int, error) {
	e := getenv(env)
	if e == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(e)
	if err != nil {
		return 0, errors.Wrap(err, env)
	}
	return v, nil
}
