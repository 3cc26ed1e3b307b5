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

// Package server exposes the project transformation API over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/operation"
	"github.com/walteh/startuply/pkg/progress"
	"github.com/walteh/startuply/pkg/provider"
	"github.com/walteh/startuply/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

// 🔄 Transformer runs the project transformations
type Transformer interface {
	Convert(ctx context.Context, req operation.ConvertRequest) (*operation.Result, error)
	GenerateBackend(ctx context.Context, req operation.GenerateBackendRequest) (*operation.Result, error)
	GenerateBase(ctx context.Context, req operation.GenerateBaseRequest) (*operation.Result, error)
}

// 🔧 Options contains the collaborators of a Server
type Options struct {
	Transformer Transformer
	Registry    *workspace.Registry
	Sink        *progress.Sink
	Cloner      provider.Cloner
	// Subscribe serves the websocket progress endpoint, optional
	Subscribe http.Handler
	// BaseDir holds cloned workspaces and download archives
	BaseDir string
	Version string
	Logger  zerolog.Logger
}

// 🌐 Server wraps the HTTP server and its routes
type Server struct {
	transformer Transformer
	registry    *workspace.Registry
	sink        *progress.Sink
	cloner      provider.Cloner
	baseDir     string
	version     string

	handler http.Handler
}

// 🏭 New creates a server with the given options
func New(opts Options) (*Server, error) {
	if opts.Transformer == nil {
		return nil, errors.Errorf("transformer is required")
	}
	if opts.Registry == nil {
		return nil, errors.Errorf("registry is required")
	}
	if opts.Sink == nil {
		return nil, errors.Errorf("progress sink is required")
	}
	if opts.Cloner == nil {
		return nil, errors.Errorf("cloner is required")
	}
	if opts.BaseDir == "" {
		opts.BaseDir = os.TempDir()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		transformer: opts.Transformer,
		registry:    opts.Registry,
		sink:        opts.Sink,
		cloner:      opts.Cloner,
		baseDir:     opts.BaseDir,
		version:     opts.Version,
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", s.handleHealth)
	api.HandleFunc("POST /api/project/clone", s.handleClone)
	api.HandleFunc("GET /api/project/{id}", s.handleGetProject)
	api.HandleFunc("GET /api/project/{id}/download", s.handleDownload)
	api.HandleFunc("POST /api/project/convert", s.handleConvert)
	api.HandleFunc("POST /api/project/generate-backend", s.handleGenerateBackend)
	api.HandleFunc("POST /api/project/generate-base", s.handleGenerateBase)
	api.HandleFunc("GET /api/progress/{taskId}", s.handleProgress)

	root := http.NewServeMux()
	root.Handle("/", accessLog(api))
	if opts.Subscribe != nil {
		// hijacked connections skip the access log wrapper
		root.Handle("GET /ws/progress", opts.Subscribe)
	}

	s.handler = withLogger(opts.Logger, root)
	return s, nil
}

// Handler returns the root handler (useful for testing)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// 🚀 ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
// started, when set, is called once the listener is bound.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration, started func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout, started)
}

// Serve runs the server on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration, started func(net.Addr)) error {
	logger := zerolog.Ctx(ctx)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")
	if started != nil {
		started(ln.Addr())
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Errorf("HTTP server error: %w", err)
	}

	if err := <-done; err != nil {
		return errors.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
