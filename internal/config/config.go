// Package config loads tool settings: built-in defaults, overridden by
// a JSON config file at $XDG_CONFIG_HOME/oaibatch/config.json,
// overridden by OAIBATCH_* environment variables. The API key is not
// config material; it lives in the environment or the credential file
// owned by the store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/kalenz/oaibatch/internal/request"
)

type Config struct {
	Model           string
	MaxOutputTokens int
	ReasoningEffort string
	WebSearch       WebSearchConfig
	BaseURL         string
	DataDir         string
}

type WebSearchConfig struct {
	Enabled     bool
	ContextSize string
}

func defaults() Config {
	return Config{
		Model:           request.DefaultModel,
		MaxOutputTokens: 100000,
		ReasoningEffort: "xhigh",
		WebSearch: WebSearchConfig{
			Enabled:     false,
			ContextSize: "medium",
		},
		BaseURL: "https://api.openai.com/v1",
		DataDir: defaultDataDir(),
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".oaibatch")
	}
	return ".oaibatch"
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "oaibatch", "config.json")
}

// Load reads configuration from the config file and environment.
func Load() (Config, error) {
	return loadFromPath(configFilePath())
}

func loadFromPath(path string) (Config, error) {
	cfg := defaults()

	b := newFileBackend(path)
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.MaxOutputTokens <= 0 {
		return Config{}, fmt.Errorf("max_output_tokens must be positive, got %d", cfg.MaxOutputTokens)
	}
	return cfg, nil
}

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "model", typ: kString, env: "OAIBATCH_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Model },
	},
	{
		key: "max_output_tokens", typ: kInt, env: "OAIBATCH_MAX_OUTPUT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.MaxOutputTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.MaxOutputTokens },
	},
	{
		key: "reasoning_effort", typ: kString, env: "OAIBATCH_REASONING_EFFORT",
		apply:   func(cfg *Config, v any) { cfg.ReasoningEffort = v.(string) },
		extract: func(cfg Config) any { return cfg.ReasoningEffort },
	},
	{
		key: "web_search.enabled", typ: kBool, env: "OAIBATCH_WEB_SEARCH_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.WebSearch.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.WebSearch.Enabled },
	},
	{
		key: "web_search.context_size", typ: kString, env: "OAIBATCH_WEB_SEARCH_CONTEXT_SIZE",
		apply:   func(cfg *Config, v any) { cfg.WebSearch.ContextSize = v.(string) },
		extract: func(cfg Config) any { return cfg.WebSearch.ContextSize },
	},
	{
		key: "base_url", typ: kString, env: "OAIBATCH_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.BaseURL },
	},
	{
		key: "data_dir", typ: kString, env: "OAIBATCH_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.DataDir },
	},
}

func applyBackend(cfg *Config, b *fileBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.getString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.getInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.getString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				bv, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("reading %s: %w", s.key, err)
				}
				s.apply(cfg, bv)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// KV is one config entry for display.
type KV struct {
	Key   string
	Value string
}

// ShowAll returns the effective configuration as sorted key/value pairs.
func ShowAll(cfg Config) []KV {
	kvs := make([]KV, 0, len(specs))
	for _, s := range specs {
		kvs = append(kvs, KV{Key: s.key, Value: fmt.Sprintf("%v", s.extract(cfg))})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs
}

// SetKey writes a single value into the config file.
func SetKey(key, value string) error {
	return setKeyAtPath(configFilePath(), key, value)
}

func setKeyAtPath(path, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		switch s.typ {
		case kInt:
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("%s expects an integer: %w", key, err)
			}
		case kBool:
			if _, err := strconv.ParseBool(value); err != nil {
				return fmt.Errorf("%s expects a boolean: %w", key, err)
			}
		}
		b := newFileBackend(path)
		return b.set(key, value)
	}
	return fmt.Errorf("unknown config key %q", key)
}
