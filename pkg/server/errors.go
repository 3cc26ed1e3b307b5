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

package server

import (
	"context"
	"net/http"

	"github.com/walteh/startuply/pkg/generation"
	"github.com/walteh/startuply/pkg/operation"
	"github.com/walteh/startuply/pkg/provider"
	"github.com/walteh/startuply/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrBadRequest marks malformed request bodies
	ErrBadRequest = errors.Base("bad request")

	// ErrCloneFailed marks a repository that could not be fetched
	ErrCloneFailed = errors.Base("cloning repository failed")
)

// statusClientClosedRequest is used when the caller went away before the work finished
const statusClientClosedRequest = 499

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeRateLimitExceeded ErrorType = "rate_limit_exceeded"
	ErrorTypeEmptyGeneration   ErrorType = "empty_generation"
	ErrorTypeGenerationFailed  ErrorType = "generation_failed"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeCanceled          ErrorType = "canceled"
	ErrorTypeCloneFailed       ErrorType = "clone_failed"
	ErrorTypeInternal          ErrorType = "internal"
)

// 📛 ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Type        ErrorType `json:"type"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Details     string    `json:"details,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	TaskID      string    `json:"taskId,omitempty"`
}

// 🏷️ CategorizeError maps err to an HTTP status and a client-safe response.
// Details are only echoed for caller mistakes; internal failures never expose
// upstream messages, paths or credentials.
func CategorizeError(err error) (int, ErrorResponse) {
	var callErr *generation.CallError

	switch {
	case err == nil:
		return http.StatusInternalServerError, ErrorResponse{
			Type:        ErrorTypeInternal,
			Code:        "unknown_error",
			Title:       "Unexpected error",
			Description: "The request failed for an unknown reason.",
		}

	case generation.IsRateLimitExceeded(err):
		return http.StatusTooManyRequests, ErrorResponse{
			Type:        ErrorTypeRateLimitExceeded,
			Code:        "rate_limit_exceeded",
			Title:       "AI service rate limit exceeded",
			Description: "The AI service kept rejecting requests for rate limiting after every retry.",
			Suggestions: []string{
				"Wait a minute and try the request again",
				"Upgrade the AI service quota or plan to raise the rate limit",
			},
		}

	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrorResponse{
			Type:        ErrorTypeCanceled,
			Code:        "request_canceled",
			Title:       "Request canceled",
			Description: "The request was canceled before it completed.",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{
			Type:        ErrorTypeGenerationFailed,
			Code:        "generation_timeout",
			Title:       "AI service timed out",
			Description: "The AI service did not answer in time.",
			Suggestions: []string{"Try again with a smaller project"},
		}

	case errors.Is(err, operation.ErrNoFiles), errors.Is(err, generation.ErrEmptyResponse):
		return http.StatusBadGateway, ErrorResponse{
			Type:        ErrorTypeEmptyGeneration,
			Code:        "empty_generation",
			Title:       "AI service returned no files",
			Description: "The AI service answered, but the answer did not contain any files.",
			Suggestions: []string{
				"Try the request again",
				"Check that the requested domain names a real framework or language",
			},
		}

	case errors.Is(err, workspace.ErrUnsafePath), errors.Is(err, provider.ErrUnsafeArchive):
		return http.StatusBadGateway, ErrorResponse{
			Type:        ErrorTypeGenerationFailed,
			Code:        "unsafe_output",
			Title:       "Unsafe file paths",
			Description: "The returned files would be written outside the project directory, so nothing was written.",
			Suggestions: []string{"Try the request again"},
		}

	case errors.Is(err, ErrCloneFailed):
		return http.StatusBadGateway, ErrorResponse{
			Type:        ErrorTypeCloneFailed,
			Code:        "clone_failed",
			Title:       "Repository could not be cloned",
			Description: "The repository host could not be reached or the repository does not exist.",
			Suggestions: []string{
				"Check that the repository URL is correct and public",
				"Try again later",
			},
		}

	case errors.As(err, &callErr):
		return http.StatusBadGateway, ErrorResponse{
			Type:        ErrorTypeGenerationFailed,
			Code:        "generation_failed",
			Title:       "AI service request failed",
			Description: "The AI service could not be reached or rejected the request.",
			Suggestions: []string{"Try again later"},
		}

	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Type:        ErrorTypeNotFound,
			Code:        "project_not_found",
			Title:       "Project not found",
			Description: "No project exists with that id. It may have been downloaded or expired.",
			Details:     err.Error(),
		}

	case errors.Is(err, operation.ErrNoSources):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Type:        ErrorTypeValidation,
			Code:        "no_source_files",
			Title:       "Project has no source files",
			Description: "The project does not contain any files that can be sent to the AI service.",
		}

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, operation.ErrInvalidRequest),
		errors.Is(err, provider.ErrInvalidRepoURL),
		errors.Is(err, provider.ErrUnsupportedHost):
		return http.StatusBadRequest, ErrorResponse{
			Type:        ErrorTypeValidation,
			Code:        "invalid_request",
			Title:       "Invalid request",
			Description: "The request could not be processed as sent.",
			Details:     err.Error(),
		}

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Type:        ErrorTypeInternal,
			Code:        "internal_error",
			Title:       "Internal error",
			Description: "The server failed to process the request.",
		}
	}
}
