// Package config holds the loadship configuration surface. Settings can
// come from a host-supplied parameter map (FromParams) or from the
// optional .loadship YAML file (Load); both use the same dotted option
// names.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recognised option names.
const (
	ParamURL               = "es.url"
	ParamAPIKey            = "es.api.key"
	ParamEnvironment       = "environment"
	ParamType              = "type"
	ParamTransactionPrefix = "transaction.controller.prefix"
	ParamBatchSize         = "batch.size"
	ParamSaveResponseBody  = "save.response.body"
	ParamBodyLimit         = "response.body.limit"
	ParamTimeout           = "timeout"
)

// Default values for unset options.
const (
	DefaultURL               = "http://localhost:9200/_bulk"
	DefaultTransactionPrefix = "TC"
	DefaultBatchSize         = 10
	DefaultBodyLimit         = 2048
	DefaultTimeout           = 5 * time.Second
)

// BodyPolicy selects when a sample's raw response body is shipped.
type BodyPolicy string

const (
	// BodyAlways ships the response body of every sample.
	BodyAlways BodyPolicy = "always"
	// BodyOnError ships the response body only for failed samples.
	BodyOnError BodyPolicy = "onError"
	// BodyOff never ships response bodies.
	BodyOff BodyPolicy = "off"
)

// ParseBodyPolicy parses a save.response.body value. Matching is
// case-insensitive; the empty string means the default (onError).
func ParseBodyPolicy(s string) (BodyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "onerror":
		return BodyOnError, nil
	case "always":
		return BodyAlways, nil
	case "off":
		return BodyOff, nil
	}
	return "", fmt.Errorf("invalid %s value %q (want always, onError, or off)", ParamSaveResponseBody, s)
}

// Config holds the parsed loadship configuration.
// All fields are optional; zero values represent defaults. In the YAML
// form batch.size 0 is indistinguishable from an absent key and means
// the default; the parameter-map form rejects an explicit "0".
type Config struct {
	RawURL         string `yaml:"es.url"`
	APIKey         string `yaml:"es.api.key"`
	Environment    string `yaml:"environment"`
	Type           string `yaml:"type"`
	RawPrefix      string `yaml:"transaction.controller.prefix"`
	RawBatchSize   int    `yaml:"batch.size"`
	RawBodyPolicy  string `yaml:"save.response.body"`
	RawBodyLimit   int    `yaml:"response.body.limit"`
	RawShipTimeout string `yaml:"timeout"` // e.g. "5s", "30s"
}

// URL returns the configured bulk endpoint or the default.
func (c *Config) URL() string {
	if c.RawURL != "" {
		return c.RawURL
	}
	return DefaultURL
}

// TransactionPrefix returns the label prefix that classifies a sample
// as a transaction controller.
func (c *Config) TransactionPrefix() string {
	if c.RawPrefix != "" {
		return c.RawPrefix
	}
	return DefaultTransactionPrefix
}

// BatchSize returns the configured batch threshold, or the default
// when the option is unset (zero).
func (c *Config) BatchSize() int {
	if c.RawBatchSize > 0 {
		return c.RawBatchSize
	}
	return DefaultBatchSize
}

// BodyPolicy returns the configured response-body policy, falling back
// to onError when unset or unparseable. Validate reports bad values.
func (c *Config) BodyPolicy() BodyPolicy {
	p, err := ParseBodyPolicy(c.RawBodyPolicy)
	if err != nil {
		return BodyOnError
	}
	return p
}

// BodyLimit returns the response-body truncation length in characters.
func (c *Config) BodyLimit() int {
	if c.RawBodyLimit > 0 {
		return c.RawBodyLimit
	}
	return DefaultBodyLimit
}

// Timeout returns the HTTP connect/read timeout for ship calls.
func (c *Config) Timeout() time.Duration {
	if c.RawShipTimeout != "" {
		d, err := time.ParseDuration(c.RawShipTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// Validate reports configuration errors that must abort session start.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL())
	if err != nil {
		return fmt.Errorf("parsing %s: %w", ParamURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q: scheme must be http or https", ParamURL, c.URL())
	}
	if c.RawBatchSize < 0 {
		return fmt.Errorf("%s must not be negative, got %d (omit or 0 for the default)", ParamBatchSize, c.RawBatchSize)
	}
	if _, err := ParseBodyPolicy(c.RawBodyPolicy); err != nil {
		return err
	}
	return nil
}

// FromParams builds a Config from a host-supplied parameter map keyed
// by the Param* option names. Unknown keys are rejected so that
// misspelled options fail loudly instead of silently using defaults.
func FromParams(params map[string]string) (*Config, error) {
	cfg := &Config{}
	for key, value := range params {
		switch key {
		case ParamURL:
			cfg.RawURL = value
		case ParamAPIKey:
			cfg.APIKey = value
		case ParamEnvironment:
			cfg.Environment = value
		case ParamType:
			cfg.Type = value
		case ParamTransactionPrefix:
			cfg.RawPrefix = value
		case ParamBatchSize:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%s must be a positive integer, got %q", ParamBatchSize, value)
			}
			cfg.RawBatchSize = n
		case ParamSaveResponseBody:
			cfg.RawBodyPolicy = value
		case ParamBodyLimit:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%s must be a positive integer, got %q", ParamBodyLimit, value)
			}
			cfg.RawBodyLimit = n
		case ParamTimeout:
			cfg.RawShipTimeout = value
		default:
			return nil, fmt.Errorf("unknown option %q", key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a .loadship YAML file. A missing file returns a default
// Config; a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
