// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultChunkSize       = 1500
	DefaultMaxPollAttempts = 15
	DefaultPollInterval    = time.Second
	DefaultMaxInteractions = 3
	DefaultOpenAIModel     = "gpt-4"
	DefaultOpenAIMaxTokens = 1000
	DefaultPort            = 8080

	// SSM parameter names, resolved under ParamPrefix.
	OpenAITokenParam = "open-ai-token"
	TwilioTokenParam = "twilio-auth-token"
)

type Config struct {
	AWSRegion       string
	Table           string
	ServerPhone     string
	ChunkSize       int
	MaxPollAttempts int
	PollInterval    time.Duration
	MaxInteractions int
	OpenAIModel     string
	OpenAIMaxTokens int64
	OpenAIAPIKey    string
	TwilioSID       string
	TwilioToken     string
	ParamPrefix     string
	WebhookURL      string
	EnsureTable     bool
	Port            int
	LogLevel        slog.Level
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads Config through getenv. All problems are reported together.
func LoadFrom(getenv func(string) string) (Config, error) {
	e := &env{get: getenv}
	cfg := Config{
		AWSRegion:       e.str("AWS_REGION", ""),
		Table:           e.required("DDB_TABLE"),
		ServerPhone:     e.required("SERVER_PHONE"),
		ChunkSize:       e.integer("CHUNK_SZ", DefaultChunkSize),
		MaxPollAttempts: e.integer("MAX_POLL_ATTEMPTS", DefaultMaxPollAttempts),
		PollInterval:    e.duration("POLL_INTERVAL", DefaultPollInterval),
		MaxInteractions: e.integer("MAX_INTERACTIONS", DefaultMaxInteractions),
		OpenAIModel:     e.str("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAIMaxTokens: int64(e.integer("OPENAI_MAX_TOKENS", DefaultOpenAIMaxTokens)),
		OpenAIAPIKey:    e.str("OPENAI_API_KEY", ""),
		TwilioSID:       e.required("TWILIO_ACCOUNT_SID"),
		TwilioToken:     e.str("TWILIO_AUTH_TOKEN", ""),
		ParamPrefix:     strings.TrimRight(e.str("PARAM_PREFIX", ""), "/"),
		WebhookURL:      e.str("WEBHOOK_URL", ""),
		EnsureTable:     e.boolean("ENSURE_TABLE", true),
		Port:            e.integer("PORT", DefaultPort),
		LogLevel:        e.level("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.ChunkSize <= 0 {
		e.fail("CHUNK_SZ", "must be positive")
	}
	if cfg.MaxPollAttempts <= 0 {
		e.fail("MAX_POLL_ATTEMPTS", "must be positive")
	}
	if cfg.PollInterval <= 0 {
		e.fail("POLL_INTERVAL", "must be positive")
	}
	if cfg.OpenAIMaxTokens <= 0 {
		e.fail("OPENAI_MAX_TOKENS", "must be positive")
	}
	if cfg.OpenAIAPIKey == "" && cfg.ParamPrefix == "" {
		e.fail("OPENAI_API_KEY", "is not set and PARAM_PREFIX is empty")
	}
	if cfg.TwilioToken == "" && cfg.ParamPrefix == "" {
		e.fail("TWILIO_AUTH_TOKEN", "is not set and PARAM_PREFIX is empty")
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTable reads only what the table maintenance commands need.
func LoadTable(getenv func(string) string) (region, table string, err error) {
	e := &env{get: getenv}
	region = e.str("AWS_REGION", "")
	table = e.required("DDB_TABLE")
	return region, table, errors.Join(e.errs...)
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) fail(key, msg string) {
	e.errs = append(e.errs, fmt.Errorf("config: %s %s", key, msg))
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) required(key string) string {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		e.fail(key, "is required")
	}
	return v
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, fmt.Sprintf("must be an integer, got %q", v))
		return def
	}
	return n
}

// duration accepts Go durations ("500ms") or a bare number of seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, fmt.Sprintf("must be a duration, got %q", v))
		return def
	}
	return d
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, fmt.Sprintf("must be a boolean, got %q", v))
		return def
	}
	return b
}

func (e *env) level(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		e.fail(key, fmt.Sprintf("must be a log level, got %q", v))
		return def
	}
	return l
}
