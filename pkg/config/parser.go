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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

func init() {
	Register(&YAMLParser{})
	Register(&JSONParser{})
	Register(&HCLParser{})
}

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

func hasExt(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func (p *YAMLParser) CanParse(filename string) bool {
	return hasExt(filename, ".yaml", ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// 🔧 JSONParser implements the Parser interface for JSON files
type JSONParser struct{}

func (p *JSONParser) CanParse(filename string) bool {
	return hasExt(filename, ".json")
}

func (p *JSONParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

func (p *HCLParser) CanParse(filename string) bool {
	return hasExt(filename, ".hcl")
}

// hclDocument mirrors Config with every block optional
type hclDocument struct {
	Server     *ServerConfig     `hcl:"server,block"`
	Generation *GenerationConfig `hcl:"generation,block"`
	Workspace  *WorkspaceConfig  `hcl:"workspace,block"`
	GitHub     *GitHubConfig     `hcl:"github,block"`
	Progress   *ProgressConfig   `hcl:"progress,block"`
	Log        *LogConfig        `hcl:"log,block"`
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "startuply.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(os.Environ()),
		},
	}

	var doc hclDocument
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &doc)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{}
	if doc.Server != nil {
		cfg.Server = *doc.Server
	}
	if doc.Generation != nil {
		cfg.Generation = *doc.Generation
	}
	if doc.Workspace != nil {
		cfg.Workspace = *doc.Workspace
	}
	if doc.GitHub != nil {
		cfg.GitHub = *doc.GitHub
	}
	if doc.Progress != nil {
		cfg.Progress = *doc.Progress
	}
	if doc.Log != nil {
		cfg.Log = *doc.Log
	}
	return cfg, nil
}

// envObject exposes KEY=VALUE pairs as an HCL object
func envObject(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
