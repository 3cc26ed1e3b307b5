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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/startuply/pkg/generation"
	"gitlab.com/tozd/go/errors"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"---FILE: a.txt ---\nA\n"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", srv.Client())

	text, err := c.Complete(context.Background(), generation.Request{
		Model:       "gpt-test",
		Prompt:      "hello",
		MaxTokens:   100,
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, "---FILE: a.txt ---\nA\n", text)
	assert.Equal(t, chatRequest{
		Model:       "gpt-test",
		Messages:    []message{{Role: "user", Content: "hello"}},
		MaxTokens:   100,
		Temperature: 0.1,
	}, got)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIs     error
		wantStatus int
	}{
		{
			name:   "rate_limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":"slow down"}`,
			wantIs: generation.ErrRateLimited,
		},
		{
			name:       "server_error",
			status:     http.StatusInternalServerError,
			body:       `{"error":"boom"}`,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error":"bad key"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "no_choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			wantIs: generation.ErrEmptyResponse,
		},
		{
			name:   "malformed_body",
			status: http.StatusOK,
			body:   `not json`,
			wantIs: generation.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, "secret-key", srv.Client())
			_, err := c.Complete(context.Background(), generation.Request{Model: "m", Prompt: "p"})

			require.Error(t, err)
			assert.NotContains(t, err.Error(), "secret-key", "errors must not leak the api key")
			if tt.wantIs != nil {
				assert.True(t, errors.Is(err, tt.wantIs), "error should wrap %v", tt.wantIs)
			}
			if tt.wantStatus != 0 {
				var se *StatusError
				require.True(t, errors.As(err, &se), "error should be a StatusError")
				assert.Equal(t, tt.wantStatus, se.StatusCode)
				assert.False(t, errors.Is(err, generation.ErrRateLimited))
			}
		})
	}
}

func TestCompleteWithRetryingClient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := generation.New(New(srv.URL, "k", srv.Client()), generation.Settings{Model: "m"},
		generation.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	text, err := client.Generate(context.Background(), "p", nil, generation.Stages{})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}
