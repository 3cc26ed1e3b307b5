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
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "startuply.yaml",
			content: `
server:
  addr: ":9090"
generation:
  model: custom-model
  max_attempts: 3
workspace:
  source_patterns: ["**/*.py"]
`,
		},
		{
			name: "json",
			file: "startuply.json",
			content: `{
  "server": {"addr": ":9090"},
  "generation": {"model": "custom-model", "max_attempts": 3},
  "workspace": {"source_patterns": ["**/*.py"]}
}`,
		},
		{
			name: "hcl",
			file: "startuply.hcl",
			content: `
server {
  addr = ":9090"
}

generation {
  model        = "custom-model"
  max_attempts = 3
}

workspace {
  source_patterns = ["**/*.py"]
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(DefaultAPIKeyEnv, "sk-test")
			t.Setenv(AddrEnv, "")

			cfg, err := Load(testContext(t), writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, ":9090", cfg.Server.Addr)
			assert.Equal(t, "custom-model", cfg.Generation.Model)
			assert.Equal(t, 3, cfg.Generation.MaxAttempts)
			assert.Equal(t, []string{"**/*.py"}, cfg.Workspace.SourcePatterns)
			assert.Equal(t, "sk-test", cfg.Generation.APIKey)

			// untouched values fall back to defaults
			assert.Equal(t, 4096, cfg.Generation.MaxTokens)
			initial, limit := cfg.Generation.RetryTimings()
			assert.Equal(t, 2*time.Second, initial)
			assert.Equal(t, 30*time.Second, limit)
			assert.Equal(t, 24*time.Hour, cfg.Workspace.Retention())
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "sk-test")
	t.Setenv(GitHubTokenEnv, "gh-token")
	t.Setenv(AddrEnv, "127.0.0.1:7000")

	cfg, err := Load(testContext(t), "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "gh-token", cfg.GitHub.Token)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Server.Shutdown())
	assert.Equal(t, time.Hour, cfg.Progress.Retention())
	assert.Equal(t, 5*time.Second, cfg.Progress.Push())
	assert.Equal(t, 10*time.Minute, cfg.Workspace.Interval())
	assert.Equal(t, 5*time.Minute, cfg.Generation.Timeout())
	assert.Empty(t, cfg.Location())
}

func TestLoadMissingCredential(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "")

	_, err := Load(testContext(t), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential), "error should be ErrMissingCredential")
}

func TestLoadCustomKeyEnv(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "")
	t.Setenv("MY_MODEL_KEY", "sk-custom")

	cfg, err := Load(testContext(t), writeConfig(t, "c.yml", "generation:\n  api_key_env: MY_MODEL_KEY\n"))

	require.NoError(t, err)
	assert.Equal(t, "sk-custom", cfg.Generation.APIKey)
}

func TestLoadHCLEnvReference(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "")
	t.Setenv("STARTUPLY_TEST_SECRET", "sk-from-hcl")

	cfg, err := Load(testContext(t), writeConfig(t, "c.hcl", `
generation {
  api_key = env.STARTUPLY_TEST_SECRET
}
`))

	require.NoError(t, err)
	assert.Equal(t, "sk-from-hcl", cfg.Generation.APIKey)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		content     string
		errContains string
		wantErr     error
	}{
		{
			name:        "unknown_yaml_field",
			file:        "c.yaml",
			content:     "generation:\n  modle: typo\n",
			errContains: "parsing YAML",
		},
		{
			name:        "unknown_json_field",
			file:        "c.json",
			content:     `{"serverr": {}}`,
			errContains: "parsing JSON",
		},
		{
			name:        "bad_hcl",
			file:        "c.hcl",
			content:     "server {\n  addr = \n}",
			errContains: "parsing HCL",
		},
		{
			name:        "unknown_hcl_block",
			file:        "c.hcl",
			content:     "database {}\n",
			errContains: "decoding HCL",
		},
		{
			name:        "unsupported_extension",
			file:        "c.toml",
			content:     "",
			errContains: "no parser found",
		},
		{
			name:    "bad_duration",
			file:    "c.yaml",
			content: "workspace:\n  max_age: soon\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "backoff_order",
			file:    "c.yaml",
			content: "generation:\n  initial_backoff: 1m\n  max_backoff: 10s\n",
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(DefaultAPIKeyEnv, "sk-test")

			_, err := Load(testContext(t), writeConfig(t, tt.file, tt.content))

			require.Error(t, err)
			if tt.errContains != "" {
				assert.Contains(t, err.Error(), tt.errContains)
			}
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(testContext(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
