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

import "time"

// CloneRequest is the body of POST /api/project/clone
type CloneRequest struct {
	URL string `json:"url"`
}

// CloneResponse describes a freshly cloned project
type CloneResponse struct {
	ProjectID string   `json:"projectId"`
	Folders   []string `json:"folders"`
}

// ProjectResponse is returned by GET /api/project/{id}
type ProjectResponse struct {
	ProjectID string    `json:"projectId"`
	Folders   []string  `json:"folders"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"createdAt"`
}

// taskFields are shared by every long-running request
type taskFields struct {
	// TaskID keys the pollable progress; generated when empty
	TaskID string `json:"taskId,omitempty"`
	// ConnectionID is the websocket subscriber that receives pushed progress
	ConnectionID string `json:"connectionId,omitempty"`
}

// ConvertRequest is the body of POST /api/project/convert
type ConvertRequest struct {
	taskFields
	ProjectID     string `json:"projectId"`
	FromDomain    string `json:"fromDomain"`
	ToDomain      string `json:"toDomain"`
	BaseProjectID string `json:"baseProjectId,omitempty"`
}

// GenerateBackendRequest is the body of POST /api/project/generate-backend.
// Either ProjectID or FrontendRepoURL names the frontend.
type GenerateBackendRequest struct {
	taskFields
	ProjectID       string `json:"projectId,omitempty"`
	FrontendRepoURL string `json:"frontendRepoUrl,omitempty"`
	TargetDomain    string `json:"targetDomain"`
}

// GenerateBaseRequest is the body of POST /api/project/generate-base
type GenerateBaseRequest struct {
	taskFields
	Domain string `json:"domain"`
}

// OperationResponse is returned by the transformation endpoints
type OperationResponse struct {
	TaskID    string   `json:"taskId"`
	ProjectID string   `json:"projectId"`
	Folders   []string `json:"folders"`
	Files     []string `json:"files"`
}

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
