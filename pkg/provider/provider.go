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

package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrUnsupportedHost is returned when no cloner is registered for a repository host
	ErrUnsupportedHost = errors.Base("unsupported repository host")

	// ErrInvalidRepoURL is returned for repository URLs that cannot be parsed
	ErrInvalidRepoURL = errors.Base("invalid repository url")
)

// 🔌 Cloner copies a remote repository's files into a local directory
type Cloner interface {
	// 📥 Clone writes the repository's default branch (or the ref in the URL) into dest
	Clone(ctx context.Context, repoURL string, dest string) error
}

// 🔧 Options are passed to every factory
type Options struct {
	// Token authenticates against the host, optional
	Token string
	// BaseURL overrides the host API endpoint
	BaseURL string
	// HTTPClient is used for API and archive requests
	HTTPClient *http.Client
}

// 🏭 Factory creates a cloner
type Factory func(ctx context.Context, opts Options) (Cloner, error)

var (
	mu sync.RWMutex
	// 🗺️ providers maps repository hosts to factories
	providers = make(map[string]Factory)
)

// 📝 Register registers a cloner factory for host
func Register(host string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	providers[normalizeHost(host)] = factory
}

// 🎯 Get returns the factory registered for host
func Get(host string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := providers[normalizeHost(host)]
	return f, ok
}

// 🔍 ForURL picks the cloner for the host of repoURL
func ForURL(ctx context.Context, repoURL string, opts Options) (Cloner, error) {
	u, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	factory, ok := Get(u.Host)
	if !ok {
		return nil, errors.WithDetails(ErrUnsupportedHost, "host", u.Host)
	}
	return factory(ctx, opts)
}

// 🔀 Router is a Cloner that picks the registered cloner for each URL's host
type Router struct {
	Options Options
}

// 📥 Clone resolves the host cloner and delegates to it
func (r Router) Clone(ctx context.Context, repoURL string, dest string) error {
	c, err := ForURL(ctx, repoURL, r.Options)
	if err != nil {
		return err
	}
	return c.Clone(ctx, repoURL, dest)
}

// 🔗 ParseRepoURL parses a repository URL, accepting a missing scheme
func ParseRepoURL(repoURL string) (*url.URL, error) {
	raw := strings.TrimSpace(repoURL)
	if raw == "" {
		return nil, errors.Errorf("%w: empty", ErrInvalidRepoURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrInvalidRepoURL, err.Error())
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, errors.Errorf("%w: unsupported scheme %q", ErrInvalidRepoURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("%w: missing host", ErrInvalidRepoURL)
	}
	u.Host = normalizeHost(u.Host)
	return u, nil
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
