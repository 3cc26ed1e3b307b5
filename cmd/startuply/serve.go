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

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/startuply/pkg/config"
	"github.com/walteh/startuply/pkg/generation"
	"github.com/walteh/startuply/pkg/generation/openai"
	"github.com/walteh/startuply/pkg/log"
	"github.com/walteh/startuply/pkg/operation"
	"github.com/walteh/startuply/pkg/progress"
	"github.com/walteh/startuply/pkg/progress/wshub"
	"github.com/walteh/startuply/pkg/provider"
	"github.com/walteh/startuply/pkg/server"
	"github.com/walteh/startuply/pkg/workspace"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(root *rootOpts) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve starts the HTTP API and the background reaper.
It will:
1. Load the configuration file and environment overrides
2. Connect the model client and the repository cloners
3. Listen until interrupted, then shut down gracefully
4. Remove every workspace directory it created`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config file and "+config.AddrEnv)

	return cmd
}

func runServe(ctx context.Context, root *rootOpts, addr string) error {
	out := newConsole()

	cfg, err := config.Load(ctx, root.configFile)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			out.Warning("No model API key found, export %s or set generation.api_key", config.DefaultAPIKeyEnv)
		}
		return errors.Errorf("loading config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if root.debug {
		level = zerolog.DebugLevel
	}
	logger := log.NewZerolog(os.Stderr, level, cfg.Log.Pretty)
	ctx = logger.WithContext(ctx)

	var mirror io.Writer
	if cfg.Log.Pretty {
		mirror = os.Stdout
	}

	a, err := newApp(cfg, logger, mirror)
	if err != nil {
		return err
	}

	if loc := cfg.Location(); loc != "" {
		out.Info("Loaded configuration from %s", loc)
	}

	err = a.run(ctx, func(addr net.Addr) {
		out.Success("Listening on %s", addr)
	})
	if err != nil {
		return err
	}

	out.Info("Server stopped")
	return nil
}

// 🏗️ app holds the long-lived components of the server process
type app struct {
	cfg      *config.Config
	registry *workspace.Registry
	sink     *progress.Sink
	hub      *wshub.Hub
	server   *server.Server
	reaper   *reaper
}

// newApp wires the components described by cfg. mirror, when set, receives a
// summary of every workspace an operation writes.
func newApp(cfg *config.Config, logger zerolog.Logger, mirror io.Writer) (*app, error) {
	completer := openai.New(cfg.Generation.Endpoint, cfg.Generation.APIKey, &http.Client{
		Timeout: cfg.Generation.Timeout(),
	})

	initial, limit := cfg.Generation.RetryTimings()
	generator := generation.New(completer, generation.Settings{
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}, generation.WithRetryPolicy(generation.RetryPolicy{
		MaxAttempts:    cfg.Generation.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     limit,
	}))

	registry := workspace.NewRegistry()
	hub := wshub.New(wshub.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	sink := progress.New(
		progress.WithPusher(hub),
		progress.WithPushTimeout(cfg.Progress.Push()),
	)

	transformer, err := operation.New(operation.Options{
		Generator:      generator,
		Registry:       registry,
		BaseDir:        cfg.Workspace.BaseDir,
		SourcePatterns: cfg.Workspace.SourcePatterns,
		Console:        log.New(mirror),
	})
	if err != nil {
		return nil, errors.Errorf("creating transformer: %w", err)
	}

	srv, err := server.New(server.Options{
		Transformer: transformer,
		Registry:    registry,
		Sink:        sink,
		Cloner: provider.Router{Options: provider.Options{
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.BaseURL,
		}},
		Subscribe: hub,
		BaseDir:   cfg.Workspace.BaseDir,
		Version:   readBuildInfo().short(),
		Logger:    logger,
	})
	if err != nil {
		return nil, errors.Errorf("creating server: %w", err)
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		hub:      hub,
		server:   srv,
		reaper: &reaper{
			registry:        registry,
			sink:            sink,
			workspaceMaxAge: cfg.Workspace.Retention(),
			progressMaxAge:  cfg.Progress.Retention(),
		},
	}, nil
}

// 🚀 run serves until ctx is done, then removes every remaining workspace
func (a *app) run(ctx context.Context, started func(net.Addr)) error {
	if err := os.MkdirAll(a.cfg.Workspace.BaseDir, 0o755); err != nil {
		return errors.Errorf("creating workspace directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.Server.Addr, a.cfg.Server.Shutdown(), started)
	})

	g.Go(func() error {
		a.reaper.loop(gctx, a.cfg.Workspace.Interval())
		return nil
	})

	err := g.Wait()

	a.reaper.drain(context.WithoutCancel(ctx))

	return err
}
