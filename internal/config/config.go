// Package config loads contentgen settings from defaults, an optional YAML
// file, a .env file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/contentgen/internal/llm"
	"github.com/abhisek/contentgen/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. CONTENTGEN_LLM_PROVIDER.
const EnvPrefix = "CONTENTGEN"

type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	History    HistoryConfig    `mapstructure:"history"`
	Export     ExportConfig     `mapstructure:"export"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type LLMConfig struct {
	// Provider empty means discover from the standard API key variables.
	Provider      string       `mapstructure:"provider"`
	ImageProvider string       `mapstructure:"image_provider"`
	Gemini        VendorConfig `mapstructure:"gemini"`
	OpenAI        VendorConfig `mapstructure:"openai"`
	Anthropic     VendorConfig `mapstructure:"anthropic"`
	OpenRouter    VendorConfig `mapstructure:"openrouter"`
	Retry         RetryConfig  `mapstructure:"retry"`
}

type VendorConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	ImageModel string `mapstructure:"image_model"`
	BaseURL    string `mapstructure:"base_url"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

type GenerationConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	MaxSessions     int           `mapstructure:"max_sessions"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DB      string `mapstructure:"db"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type TemplatesConfig struct {
	// File replaces the built-in template table when set.
	File string `mapstructure:"file"`
}

// TracingConfig enables OpenTelemetry spans for the web server and
// provider calls.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sample_rate"`
	// File receives spans as JSON lines; empty means stderr.
	File string `mapstructure:"file"`
}

// standard key variables, in discovery order
var discovery = []struct {
	provider string
	env      string
}{
	{llm.ProviderGemini, "GEMINI_API_KEY"},
	{llm.ProviderOpenAI, "OPENAI_API_KEY"},
	{llm.ProviderAnthropic, "ANTHROPIC_API_KEY"},
	{llm.ProviderOpenRouter, "OPENROUTER_API_KEY"},
}

// Load reads configuration. An empty path searches for contentgen.yaml in
// the working directory and the user config directory; a missing file is
// not an error unless path was given explicitly.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("contentgen")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "contentgen"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.discoverKeys()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := llm.DefaultConfig()

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.image_provider", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.gemini.image_model", d.Gemini.ImageModel)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.openai.image_model", d.OpenAI.ImageModel)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", d.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.system_prompt", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("server.max_sessions", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db", "")

	v.SetDefault("export.dir", ".")
	v.SetDefault("templates.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.file", "")
}

// discoverKeys fills empty vendor keys from the standard variables and,
// when no provider was chosen, picks the first vendor with a key.
func (c *Config) discoverKeys() {
	for _, d := range discovery {
		vc := c.vendor(d.provider)
		if vc.APIKey == "" {
			vc.APIKey = os.Getenv(d.env)
		}
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = llm.ProviderGemini
		for _, d := range discovery {
			if c.vendor(d.provider).APIKey != "" {
				c.LLM.Provider = d.provider
				break
			}
		}
	}

	if c.LLM.ImageProvider == "" && !canDrawImages(c.LLM.Provider) {
		c.LLM.ImageProvider = llm.ProviderGemini
		if c.LLM.Gemini.APIKey == "" && c.LLM.OpenAI.APIKey != "" {
			c.LLM.ImageProvider = llm.ProviderOpenAI
		}
	}
}

func canDrawImages(provider string) bool {
	switch provider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderMock:
		return true
	}
	return false
}

func (c *Config) vendor(provider string) *VendorConfig {
	switch provider {
	case llm.ProviderGemini:
		return &c.LLM.Gemini
	case llm.ProviderOpenAI:
		return &c.LLM.OpenAI
	case llm.ProviderAnthropic:
		return &c.LLM.Anthropic
	case llm.ProviderOpenRouter:
		return &c.LLM.OpenRouter
	}
	return &VendorConfig{}
}

// LLMConfig converts the llm section into the provider factory's config.
func (c *Config) LLMConfig() llm.Config {
	out := llm.DefaultConfig()
	out.Provider = c.LLM.Provider
	out.ImageProvider = c.LLM.ImageProvider

	out.Gemini.APIKey = c.LLM.Gemini.APIKey
	setIf(&out.Gemini.Model, c.LLM.Gemini.Model)
	setIf(&out.Gemini.ImageModel, c.LLM.Gemini.ImageModel)

	out.OpenAI.APIKey = c.LLM.OpenAI.APIKey
	setIf(&out.OpenAI.Model, c.LLM.OpenAI.Model)
	setIf(&out.OpenAI.ImageModel, c.LLM.OpenAI.ImageModel)
	out.OpenAI.BaseURL = c.LLM.OpenAI.BaseURL

	out.Anthropic.APIKey = c.LLM.Anthropic.APIKey
	setIf(&out.Anthropic.Model, c.LLM.Anthropic.Model)

	out.OpenRouter.APIKey = c.LLM.OpenRouter.APIKey
	setIf(&out.OpenRouter.Model, c.LLM.OpenRouter.Model)
	out.OpenRouter.BaseURL = c.LLM.OpenRouter.BaseURL

	out.Retry = llm.RetryConfig{
		MaxAttempts: c.LLM.Retry.MaxAttempts,
		InitialWait: c.LLM.Retry.InitialWait,
		MaxWait:     c.LLM.Retry.MaxWait,
		Multiplier:  c.LLM.Retry.Multiplier,
	}
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports values that would make the program misbehave. A missing
// API key is not one of them; see Warnings.
func (c *Config) Validate() error {
	var errs []error

	if err := c.LLMConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("generation.timeout must be positive, got %s", c.Generation.Timeout))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature must be between 0 and 2, got %g", c.Generation.Temperature))
	}

	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.session_ttl":      c.Server.SessionTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Server.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("server.max_sessions must be at least 1, got %d", c.Server.MaxSessions))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %g", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

// Warnings lists non-fatal problems worth telling the user about.
func (c *Config) Warnings() []string {
	var out []string
	for _, p := range c.LLMConfig().MissingKeys() {
		out = append(out, fmt.Sprintf("no API key configured for %s; generation will fail until one is set", p))
	}
	return out
}
