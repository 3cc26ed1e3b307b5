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

package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/progress"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrRateLimited marks a single remote call rejected for rate limiting (HTTP 429)
	ErrRateLimited = errors.Base("rate limited")

	// ErrRateLimitExceeded is returned once every attempt was rate limited
	ErrRateLimitExceeded = errors.Base("rate limit exceeded")

	// ErrEmptyResponse is returned when the remote call succeeded without generated text
	ErrEmptyResponse = errors.Base("empty generation response")
)

// ❌ CallError is a remote call failure that is not retried
type CallError struct {
	Attempt int
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("calling model (attempt %d): %s", e.Attempt, e.Err.Error())
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// 📝 Request is one remote completion call
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// 🔌 Completer performs a single remote completion call.
// Implementations return an error wrapping ErrRateLimited when the provider throttles.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// 🔄 RetryPolicy bounds the rate-limit retry loop
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy allows 5 attempts, waiting 2s, 4s, 8s, 16s (capped at 30s)
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the wait before the retry following attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// 🎯 Stages are the percentages reported around the remote call
type Stages struct {
	Low  int
	High int
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Settings are the fixed parameters of every completion request
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Option configures a Client
type Option func(*Client)

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithSleeper overrides how backoff waits are performed
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// 🤖 Client wraps a Completer with rate-limit retries and progress reporting
type Client struct {
	completer Completer
	settings  Settings
	retry     RetryPolicy
	sleep     Sleeper
}

// 🏭 New creates a client
func New(completer Completer, settings Settings, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		settings:  settings,
		retry:     DefaultRetryPolicy(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// 🚀 Generate sends prompt to the model and returns the generated text.
// Only rate-limit failures are retried; anything else is returned at once.
func (c *Client) Generate(ctx context.Context, prompt string, reporter progress.Reporter, stages Stages) (string, error) {
	logger := zerolog.Ctx(ctx)
	if reporter == nil {
		reporter = progress.Discard
	}

	req := Request{
		Model:       c.settings.Model,
		Prompt:      prompt,
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
	}

	reporter.Report(ctx, "Sending request to AI model...", stages.Low)

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Errorf("generation cancelled: %w", err)
		}

		text, err := c.completer.Complete(ctx, req)
		if err == nil {
			if text == "" {
				return "", errors.WithStack(ErrEmptyResponse)
			}
			reporter.Report(ctx, "Processing AI response...", stages.High)
			logger.Debug().Int("attempt", attempt).Int("response_length", len(text)).Msg("generation succeeded")
			return text, nil
		}

		if !errors.Is(err, ErrRateLimited) {
			return "", errors.WithStack(&CallError{Attempt: attempt, Err: err})
		}

		lastErr = err
		if attempt == c.retry.MaxAttempts {
			break
		}

		wait := c.retry.Backoff(attempt)
		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", c.retry.MaxAttempts).
			Dur("backoff", wait).
			Msg("rate limited by model provider")
		reporter.Report(ctx,
			fmt.Sprintf("Rate limited, retrying (attempt %d/%d) in %s...", attempt+1, c.retry.MaxAttempts, wait),
			stages.Low)

		if err := c.sleep(ctx, wait); err != nil {
			return "", errors.Errorf("waiting to retry: %w", err)
		}
	}

	return "", errors.Errorf("%w after %d attempts: %s", ErrRateLimitExceeded, c.retry.MaxAttempts, lastErr.Error())
}

// IsRateLimitExceeded reports whether err means the retry budget was spent on rate limits
func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}
