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

package operation

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/fileset"
	"github.com/walteh/startuply/pkg/generation"
	"github.com/walteh/startuply/pkg/log"
	"github.com/walteh/startuply/pkg/progress"
	"github.com/walteh/startuply/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

const (
	KindConvert         = "convert"
	KindGenerateBackend = "generate-backend"
	KindGenerateBase    = "generate-base"
)

var (
	// ErrNoFiles is returned when the model reply contains no file records
	ErrNoFiles = errors.Base("model response contained no files")

	// ErrNoSources is returned when a project has no files matching the source patterns
	ErrNoSources = errors.Base("project contains no source files")

	// ErrInvalidRequest is returned for missing required request fields
	ErrInvalidRequest = errors.Base("invalid request")
)

// 🤖 Generator turns a prompt into model text
type Generator interface {
	Generate(ctx context.Context, prompt string, reporter progress.Reporter, stages generation.Stages) (string, error)
}

// 🔧 Options contains the collaborators of a Transformer
type Options struct {
	// Generator performs the remote model call
	Generator Generator
	// Registry tracks source and output workspaces
	Registry *workspace.Registry
	// BaseDir is where new workspace directories are created
	BaseDir string
	// SourcePatterns select which project files are sent to the model
	SourcePatterns []string
	// Console optionally mirrors written files to a terminal
	Console *log.Logger
}

// 🏭 Transformer runs the convert / generate-backend / generate-base operations
type Transformer struct {
	generator Generator
	registry  *workspace.Registry
	baseDir   string
	patterns  []string
	console   *log.Logger
}

// 🏭 New creates a transformer with the given options
func New(opts Options) (*Transformer, error) {
	if opts.Generator == nil {
		return nil, errors.Errorf("generator is required")
	}
	if opts.Registry == nil {
		return nil, errors.Errorf("registry is required")
	}
	if opts.BaseDir == "" {
		opts.BaseDir = os.TempDir()
	}
	if opts.Console == nil {
		opts.Console = log.New(nil)
	}
	return &Transformer{
		generator: opts.Generator,
		registry:  opts.Registry,
		baseDir:   opts.BaseDir,
		patterns:  opts.SourcePatterns,
		console:   opts.Console,
	}, nil
}

// 📦 Result describes the workspace an operation wrote to
type Result struct {
	ProjectID string   `json:"projectId"`
	Folders   []string `json:"folders"`
	Files     []string `json:"files"`
}

// 🔄 ConvertRequest converts a project between domains
type ConvertRequest struct {
	ProjectID  string
	FromDomain string
	ToDomain   string
	// BaseProjectID, when set, layers the converted files onto that workspace
	BaseProjectID string
	Reporter      progress.Reporter
}

// ⚙️ GenerateBackendRequest generates a backend for a frontend project
type GenerateBackendRequest struct {
	ProjectID    string
	TargetDomain string
	Reporter     progress.Reporter
}

// 🌱 GenerateBaseRequest scaffolds a new project
type GenerateBaseRequest struct {
	Domain   string
	Reporter progress.Reporter
}

// 🔄 Convert rewrites a project's sources from one domain to another
func (t *Transformer) Convert(ctx context.Context, req ConvertRequest) (*Result, error) {
	if strings.TrimSpace(req.FromDomain) == "" || strings.TrimSpace(req.ToDomain) == "" {
		return nil, errors.Errorf("%w: fromDomain and toDomain are required", ErrInvalidRequest)
	}
	reporter := reporterOrDiscard(req.Reporter)

	src, err := t.lookup(req.ProjectID)
	if err != nil {
		return nil, err
	}

	var base *workspace.Workspace
	if req.BaseProjectID != "" {
		b, err := t.lookup(req.BaseProjectID)
		if err != nil {
			return nil, errors.Errorf("base project: %w", err)
		}
		base = &b
	}

	reporter.Report(ctx, "Preparing conversion request...", 10)
	files, err := t.readSources(src)
	if err != nil {
		return nil, err
	}

	reporter.Report(ctx, "Sending request to AI service...", 30)
	text, err := t.generator.Generate(ctx, convertPrompt(req.FromDomain, req.ToDomain, files), reporter, generateStages)
	if err != nil {
		return nil, errors.Errorf("converting project: %w", err)
	}

	return t.write(ctx, text, base, reporter, log.WorkspaceOperation{
		Kind:   KindConvert,
		Domain: req.ToDomain,
	}, "Conversion completed.")
}

// ⚙️ GenerateBackend creates a backend project for a frontend project
func (t *Transformer) GenerateBackend(ctx context.Context, req GenerateBackendRequest) (*Result, error) {
	if strings.TrimSpace(req.TargetDomain) == "" {
		return nil, errors.Errorf("%w: targetDomain is required", ErrInvalidRequest)
	}
	reporter := reporterOrDiscard(req.Reporter)

	src, err := t.lookup(req.ProjectID)
	if err != nil {
		return nil, err
	}

	reporter.Report(ctx, "Analyzing frontend code...", 10)
	files, err := t.readSources(src)
	if err != nil {
		return nil, err
	}

	reporter.Report(ctx, "Generating backend code...", 30)
	text, err := t.generator.Generate(ctx, backendPrompt(req.TargetDomain, files), reporter, generateStages)
	if err != nil {
		return nil, errors.Errorf("generating backend: %w", err)
	}

	return t.write(ctx, text, nil, reporter, log.WorkspaceOperation{
		Kind:   KindGenerateBackend,
		Domain: req.TargetDomain,
	}, "Backend generation completed.")
}

// 🌱 GenerateBase scaffolds a starter project for domain
func (t *Transformer) GenerateBase(ctx context.Context, req GenerateBaseRequest) (*Result, error) {
	if strings.TrimSpace(req.Domain) == "" {
		return nil, errors.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	reporter := reporterOrDiscard(req.Reporter)

	reporter.Report(ctx, "Preparing project generation...", 10)
	prompt := basePrompt(req.Domain)

	reporter.Report(ctx, "Generating project files...", 30)
	text, err := t.generator.Generate(ctx, prompt, reporter, generateStages)
	if err != nil {
		return nil, errors.Errorf("generating base project: %w", err)
	}

	return t.write(ctx, text, nil, reporter, log.WorkspaceOperation{
		Kind:   KindGenerateBase,
		Domain: req.Domain,
	}, "Project generation completed.")
}

var generateStages = generation.Stages{Low: 50, High: 80}

func reporterOrDiscard(r progress.Reporter) progress.Reporter {
	if r == nil {
		return progress.Discard
	}
	return r
}

func (t *Transformer) lookup(id string) (workspace.Workspace, error) {
	if id == "" {
		return workspace.Workspace{}, errors.Errorf("%w: projectId is required", ErrInvalidRequest)
	}
	ws, ok := t.registry.Lookup(id)
	if !ok {
		return workspace.Workspace{}, errors.WithDetails(workspace.ErrNotFound, "project_id", id)
	}
	return ws, nil
}

func (t *Transformer) readSources(ws workspace.Workspace) (*fileset.FileSet, error) {
	files, err := workspace.ReadSources(ws.Root, t.patterns)
	if err != nil {
		return nil, errors.Errorf("reading project sources: %w", err)
	}
	if files.Len() == 0 {
		return nil, errors.WithDetails(ErrNoSources, "project_id", ws.ID)
	}
	return files, nil
}

// 💾 write decodes the model reply and materializes it. With a nil base a new
// workspace is created; nothing is created when decoding or validation fails.
func (t *Transformer) write(ctx context.Context, text string, base *workspace.Workspace, reporter progress.Reporter, op log.WorkspaceOperation, doneMsg string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	files := fileset.Decode(text)
	if files.Len() == 0 {
		logger.Warn().Str("kind", op.Kind).Int("response_length", len(text)).Msg("model response contained no file records")
		return nil, errors.WithStack(ErrNoFiles)
	}
	if err := workspace.ValidatePaths(files); err != nil {
		return nil, errors.Errorf("validating generated files: %w", err)
	}

	reporter.Report(ctx, "Writing project files...", 90)

	root := ""
	if base != nil {
		// the base may have been reaped or downloaded during generation
		if !t.registry.Touch(base.ID) {
			return nil, errors.WithDetails(workspace.ErrNotFound, "project_id", base.ID)
		}
		root = base.Root
	} else {
		r, err := workspace.NewRoot(t.baseDir, op.Kind)
		if err != nil {
			return nil, err
		}
		root = r
	}

	changes, err := workspace.Materialize(ctx, root, files)
	if err != nil {
		if base == nil {
			_ = workspace.Destroy(root)
		}
		return nil, errors.Errorf("writing generated files: %w", err)
	}

	folders, err := workspace.TopLevelFolders(root)
	if err != nil {
		if base == nil {
			_ = workspace.Destroy(root)
		}
		return nil, err
	}
	if folders == nil {
		folders = []string{}
	}

	var id string
	if base != nil {
		id = base.ID
		if !t.registry.Update(id, folders) {
			return nil, errors.WithDetails(workspace.ErrNotFound, "project_id", id)
		}
	} else {
		id = t.registry.Create(root, folders)
	}

	op.WorkspaceID = id
	t.console.LogWorkspace(ctx, op, fileOperations(changes))

	reporter.Report(ctx, doneMsg, 100)

	return &Result{
		ProjectID: id,
		Folders:   folders,
		Files:     files.Paths(),
	}, nil
}

func fileOperations(changes []workspace.FileChange) []log.FileOperation {
	out := make([]log.FileOperation, 0, len(changes))
	for _, c := range changes {
		out = append(out, log.FileOperation{
			Path:       c.Path,
			Status:     c.Status.String(),
			IsNew:      c.Status == workspace.StatusNew,
			IsModified: c.Status == workspace.StatusModified,
		})
	}
	return out
}
