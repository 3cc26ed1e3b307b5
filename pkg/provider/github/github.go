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

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/provider"
	"gitlab.com/tozd/go/errors"
)

func init() {
	provider.Register("github.com", New)
}

// 🎯 Cloner implements provider.Cloner for GitHub
type Cloner struct {
	client *github.Client
}

// 🏭 New creates a GitHub cloner. The token is optional; public repositories work without one.
func New(ctx context.Context, opts provider.Options) (provider.Cloner, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := github.NewClient(httpClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Errorf("parsing base url: %w", err)
		}
		client.BaseURL = u
	}

	zerolog.Ctx(ctx).Debug().Bool("authenticated", opts.Token != "").Msg("created github cloner")

	return &Cloner{client: client}, nil
}

// 🔍 parseRepo extracts owner, name and an optional ref from a GitHub URL.
// github.com/<owner>/<repo>[.git][/tree/<ref>]
func parseRepo(repoURL string) (owner, name, ref string, err error) {
	u, err := provider.ParseRepoURL(repoURL)
	if err != nil {
		return "", "", "", err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", errors.Errorf("%w: invalid GitHub repository URL %s", provider.ErrInvalidRepoURL, repoURL)
	}

	owner = parts[0]
	name = strings.TrimSuffix(parts[1], ".git")
	if len(parts) >= 4 && parts[2] == "tree" {
		ref = strings.Join(parts[3:], "/")
	}
	return owner, name, ref, nil
}

// 📥 Clone downloads the repository tarball and extracts it into dest
func (c *Cloner) Clone(ctx context.Context, repoURL string, dest string) error {
	logger := zerolog.Ctx(ctx)

	owner, name, ref, err := parseRepo(repoURL)
	if err != nil {
		return err
	}

	if ref == "" {
		repo, _, err := c.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return errors.Errorf("getting repository %s/%s: %w", owner, name, err)
		}
		ref = repo.GetDefaultBranch()
	}

	req, err := c.client.NewRequest(http.MethodGet, fmt.Sprintf("repos/%s/%s/tarball/%s", owner, name, ref), nil)
	if err != nil {
		return errors.Errorf("creating archive request: %w", err)
	}

	resp, err := c.client.BareDo(ctx, req)
	if err != nil {
		return errors.Errorf("downloading archive for %s/%s@%s: %w", owner, name, ref, err)
	}
	defer resp.Body.Close()

	count, err := provider.ExtractTarball(ctx, resp.Body, dest)
	if err != nil {
		return errors.Errorf("extracting %s/%s@%s: %w", owner, name, ref, err)
	}

	logger.Info().
		Str("owner", owner).
		Str("repo", name).
		Str("ref", ref).
		Int("files", count).
		Msg("cloned repository")

	return nil
}
