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

// Package openai talks to an OpenAI-compatible chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/generation"
	"gitlab.com/tozd/go/errors"
)

const maxErrorBody = 512

// ⚠️ StatusError is a non-2xx response other than a rate limit
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// 🔌 Completer implements generation.Completer over HTTP
type Completer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// 🏭 New creates a completer posting to endpoint with a bearer token.
// A nil client means http.DefaultClient.
func New(endpoint, apiKey string, client *http.Client) *Completer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Completer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
	}
}

// 📤 Complete performs one chat-completions call
func (c *Completer) Complete(ctx context.Context, req generation.Request) (string, error) {
	logger := zerolog.Ctx(ctx)

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", errors.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	logger.Debug().Str("model", req.Model).Int("prompt_length", len(req.Prompt)).Msg("sending completion request")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", errors.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", errors.WithDetails(generation.ErrRateLimited, "retry_after", resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", errors.WithStack(&StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		})
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Errorf("%w: decoding response: %s", generation.ErrEmptyResponse, err.Error())
	}

	for _, choice := range parsed.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
	}

	return "", errors.WithStack(generation.ErrEmptyResponse)
}
