// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	// DefaultAPIKeyEnv is read when generation.api_key_env is unset
	DefaultAPIKeyEnv = "STARTUPLY_API_KEY"
	// GitHubTokenEnv overrides github.token
	GitHubTokenEnv = "GITHUB_TOKEN"
	// AddrEnv overrides server.addr
	AddrEnv = "STARTUPLY_ADDR"
)

var (
	// ErrMissingCredential is returned when no model API key is configured
	ErrMissingCredential = errors.Base("missing model credential")

	// ErrInvalidConfig is returned for values that fail validation
	ErrInvalidConfig = errors.Base("invalid configuration")
)

// 🌐 ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string   `json:"addr,omitempty" yaml:"addr,omitempty" hcl:"addr,optional"`
	ShutdownTimeout string   `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty" hcl:"shutdown_timeout,optional"`
	AllowedOrigins  []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" hcl:"allowed_origins,optional"`
}

// 🤖 GenerationConfig configures the model endpoint and retry policy
type GenerationConfig struct {
	Endpoint       string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty" hcl:"endpoint,optional"`
	Model          string  `json:"model,omitempty" yaml:"model,omitempty" hcl:"model,optional"`
	APIKey         string  `json:"api_key,omitempty" yaml:"api_key,omitempty" hcl:"api_key,optional"`
	APIKeyEnv      string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty" hcl:"api_key_env,optional"`
	MaxTokens      int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" hcl:"max_tokens,optional"`
	Temperature    float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" hcl:"temperature,optional"`
	RequestTimeout string  `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty" hcl:"request_timeout,optional"`
	MaxAttempts    int     `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" hcl:"max_attempts,optional"`
	InitialBackoff string  `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty" hcl:"initial_backoff,optional"`
	MaxBackoff     string  `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty" hcl:"max_backoff,optional"`
}

// 📁 WorkspaceConfig configures workspace storage and reaping
type WorkspaceConfig struct {
	BaseDir        string   `json:"base_dir,omitempty" yaml:"base_dir,omitempty" hcl:"base_dir,optional"`
	MaxAge         string   `json:"max_age,omitempty" yaml:"max_age,omitempty" hcl:"max_age,optional"`
	ReapInterval   string   `json:"reap_interval,omitempty" yaml:"reap_interval,omitempty" hcl:"reap_interval,optional"`
	SourcePatterns []string `json:"source_patterns,omitempty" yaml:"source_patterns,omitempty" hcl:"source_patterns,optional"`
}

// 🐙 GitHubConfig configures repository cloning
type GitHubConfig struct {
	Token   string `json:"token,omitempty" yaml:"token,omitempty" hcl:"token,optional"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" hcl:"base_url,optional"`
}

// 📊 ProgressConfig configures progress retention and push delivery
type ProgressConfig struct {
	MaxAge      string `json:"max_age,omitempty" yaml:"max_age,omitempty" hcl:"max_age,optional"`
	PushTimeout string `json:"push_timeout,omitempty" yaml:"push_timeout,omitempty" hcl:"push_timeout,optional"`
}

// 📝 LogConfig configures the process logger
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" hcl:"level,optional"`
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty" hcl:"pretty,optional"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Workspace  WorkspaceConfig  `json:"workspace" yaml:"workspace"`
	GitHub     GitHubConfig     `json:"github" yaml:"github"`
	Progress   ProgressConfig   `json:"progress" yaml:"progress"`
	Log        LogConfig        `json:"log" yaml:"log"`

	location string
}

// 🏭 Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Generation: GenerationConfig{
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-4o-mini",
			APIKeyEnv:      DefaultAPIKeyEnv,
			MaxTokens:      4096,
			Temperature:    0.2,
			RequestTimeout: "5m",
			MaxAttempts:    5,
			InitialBackoff: "2s",
			MaxBackoff:     "30s",
		},
		Workspace: WorkspaceConfig{
			BaseDir:      os.TempDir(),
			MaxAge:       "24h",
			ReapInterval: "10m",
			SourcePatterns: []string{
				"**/*.{js,jsx,ts,tsx,mjs,cjs,vue,svelte}",
				"**/*.{py,go,rb,java,kt,cs,php,rs,swift}",
				"**/*.{html,css,scss}",
				"**/package.json",
			},
		},
		Progress: ProgressConfig{
			MaxAge:      "1h",
			PushTimeout: "5s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// 🎯 Load reads path (when non-empty), fills defaults, applies environment overrides and validates
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)

	cfg := &Config{}
	if path != "" {
		logger.Debug().Str("path", path).Msg("loading configuration")

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Errorf("reading config file: %w", err)
		}

		p := GetParser(path)
		if p == nil {
			return nil, errors.Errorf("no parser found for file: %s", path)
		}

		cfg, err = p.Parse(ctx, data)
		if err != nil {
			return nil, errors.Errorf("parsing config: %w", err)
		}
		cfg.location = path
	}

	cfg.applyDefaults(Default())
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Location is the file the configuration was read from, empty for defaults
func (cfg *Config) Location() string {
	return cfg.location
}

func (cfg *Config) applyDefaults(def *Config) {
	setString(&cfg.Server.Addr, def.Server.Addr)
	setString(&cfg.Server.ShutdownTimeout, def.Server.ShutdownTimeout)

	g, dg := &cfg.Generation, def.Generation
	setString(&g.Endpoint, dg.Endpoint)
	setString(&g.Model, dg.Model)
	setString(&g.APIKeyEnv, dg.APIKeyEnv)
	setString(&g.RequestTimeout, dg.RequestTimeout)
	setString(&g.InitialBackoff, dg.InitialBackoff)
	setString(&g.MaxBackoff, dg.MaxBackoff)
	if g.MaxTokens == 0 {
		g.MaxTokens = dg.MaxTokens
	}
	if g.Temperature == 0 {
		g.Temperature = dg.Temperature
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = dg.MaxAttempts
	}

	w, dw := &cfg.Workspace, def.Workspace
	setString(&w.BaseDir, dw.BaseDir)
	setString(&w.MaxAge, dw.MaxAge)
	setString(&w.ReapInterval, dw.ReapInterval)
	if len(w.SourcePatterns) == 0 {
		w.SourcePatterns = dw.SourcePatterns
	}

	setString(&cfg.Progress.MaxAge, def.Progress.MaxAge)
	setString(&cfg.Progress.PushTimeout, def.Progress.PushTimeout)
	setString(&cfg.Log.Level, def.Log.Level)
}

func (cfg *Config) applyEnv(getenv func(string) string) {
	if v := getenv(cfg.Generation.APIKeyEnv); v != "" {
		cfg.Generation.APIKey = v
	}
	if v := getenv(GitHubTokenEnv); v != "" {
		cfg.GitHub.Token = v
	}
	if v := getenv(AddrEnv); v != "" {
		cfg.Server.Addr = v
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// 🔍 Validate checks if the configuration is valid
func (cfg *Config) Validate() error {
	if cfg.Generation.APIKey == "" {
		return errors.WithDetails(ErrMissingCredential, "env", cfg.Generation.APIKeyEnv)
	}
	if cfg.Generation.Endpoint == "" {
		return errors.Errorf("%w: generation.endpoint is required", ErrInvalidConfig)
	}
	if cfg.Generation.MaxAttempts < 1 {
		return errors.Errorf("%w: generation.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if cfg.Generation.MaxTokens < 1 {
		return errors.Errorf("%w: generation.max_tokens must be positive", ErrInvalidConfig)
	}

	durations := map[string]string{
		"server.shutdown_timeout":    cfg.Server.ShutdownTimeout,
		"generation.request_timeout": cfg.Generation.RequestTimeout,
		"generation.initial_backoff": cfg.Generation.InitialBackoff,
		"generation.max_backoff":     cfg.Generation.MaxBackoff,
		"workspace.max_age":          cfg.Workspace.MaxAge,
		"workspace.reap_interval":    cfg.Workspace.ReapInterval,
		"progress.max_age":           cfg.Progress.MaxAge,
		"progress.push_timeout":      cfg.Progress.PushTimeout,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Errorf("%w: %s: %s", ErrInvalidConfig, name, err.Error())
		}
		if d <= 0 {
			return errors.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	if cfg.Generation.maxBackoff() < cfg.Generation.initialBackoff() {
		return errors.Errorf("%w: generation.max_backoff is shorter than generation.initial_backoff", ErrInvalidConfig)
	}

	return nil
}

// duration parses a value already checked by Validate
func duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func (g GenerationConfig) initialBackoff() time.Duration { return duration(g.InitialBackoff) }
func (g GenerationConfig) maxBackoff() time.Duration     { return duration(g.MaxBackoff) }

// RetryTimings returns the initial and maximum backoff
func (g GenerationConfig) RetryTimings() (initial, limit time.Duration) {
	return g.initialBackoff(), g.maxBackoff()
}

// Timeout bounds a single model request
func (g GenerationConfig) Timeout() time.Duration { return duration(g.RequestTimeout) }

// Shutdown bounds graceful server shutdown
func (s ServerConfig) Shutdown() time.Duration { return duration(s.ShutdownTimeout) }

// Retention is how long an idle workspace is kept
func (w WorkspaceConfig) Retention() time.Duration { return duration(w.MaxAge) }

// Interval is how often expired workspaces and progress are reaped
func (w WorkspaceConfig) Interval() time.Duration { return duration(w.ReapInterval) }

// Retention is how long a task's last progress event is kept
func (p ProgressConfig) Retention() time.Duration { return duration(p.MaxAge) }

// Push bounds a single push delivery
func (p ProgressConfig) Push() time.Duration { return duration(p.PushTimeout) }
