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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/walteh/startuply/pkg/archive"
	"github.com/walteh/startuply/pkg/operation"
	"github.com/walteh/startuply/pkg/progress"
	"github.com/walteh/startuply/pkg/provider"
	"github.com/walteh/startuply/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

const (
	maxBodyBytes = 1 << 20
	// TaskIDHeader echoes the task id of long-running requests
	TaskIDHeader = "X-Task-Id"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	var req CloneRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	ws, err := s.cloneProject(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	writeJSON(w, http.StatusOK, CloneResponse{ProjectID: ws.ID, Folders: nonNil(ws.Folders)})
}

// cloneProject fetches repoURL into a new registered workspace
func (s *Server) cloneProject(ctx context.Context, repoURL string) (workspace.Workspace, error) {
	logger := zerolog.Ctx(ctx)

	if strings.TrimSpace(repoURL) == "" {
		return workspace.Workspace{}, errors.Errorf("%w: url is required", ErrBadRequest)
	}
	if _, err := provider.ParseRepoURL(repoURL); err != nil {
		return workspace.Workspace{}, err
	}

	root, err := workspace.NewRoot(s.baseDir, "clone")
	if err != nil {
		return workspace.Workspace{}, err
	}

	if err := s.cloner.Clone(ctx, repoURL, root); err != nil {
		_ = workspace.Destroy(root)
		switch {
		case errors.Is(err, provider.ErrInvalidRepoURL),
			errors.Is(err, provider.ErrUnsupportedHost),
			errors.Is(err, provider.ErrUnsafeArchive),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return workspace.Workspace{}, err
		}
		logger.Warn().Err(err).Str("url", repoURL).Msg("clone failed")
		return workspace.Workspace{}, errors.Errorf("%w: %s", ErrCloneFailed, repoURL)
	}

	folders, err := workspace.TopLevelFolders(root)
	if err != nil {
		_ = workspace.Destroy(root)
		return workspace.Workspace{}, err
	}

	id := s.registry.Create(root, folders)
	logger.Info().Str("project_id", id).Str("url", repoURL).Msg("project cloned")

	ws, _ := s.registry.Lookup(id)
	return ws, nil
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ws, ok := s.registry.Lookup(id)
	if !ok {
		s.writeError(w, r, "", errors.WithDetails(workspace.ErrNotFound, "project_id", id))
		return
	}

	files, err := workspace.Tree(ws.Root)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	writeJSON(w, http.StatusOK, ProjectResponse{
		ProjectID: ws.ID,
		Folders:   nonNil(ws.Folders),
		Files:     nonNil(files),
		CreatedAt: ws.CreatedAt,
	})
}

// 📦 handleDownload streams the project as a zip. The workspace is deleted afterwards
// whether or not the transfer succeeded.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	id := r.PathValue("id")

	// claimed up front so a concurrent download of the same id gets a clean 404
	ws, ok := s.registry.Take(id)
	if !ok {
		s.writeError(w, r, "", errors.WithDetails(workspace.ErrNotFound, "project_id", id))
		return
	}

	defer func() {
		if err := workspace.Destroy(ws.Root); err != nil {
			logger.Warn().Err(err).Str("project_id", id).Msg("removing downloaded workspace")
		}
	}()

	tmp, err := os.CreateTemp(s.baseDir, "startuply-*.zip")
	if err != nil {
		s.writeError(w, r, "", errors.Errorf("creating archive file: %w", err))
		return
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := archive.Zip(r.Context(), ws.Root, tmp); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		s.writeError(w, r, "", errors.Errorf("sizing archive: %w", err))
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.writeError(w, r, "", errors.Errorf("rewinding archive: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, tmp); err != nil {
		logger.Warn().Err(err).Str("project_id", id).Msg("streaming archive")
		return
	}
	logger.Info().Str("project_id", id).Int64("bytes", size).Msg("project downloaded")
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	taskID, reporter := s.startTask(w, req.taskFields)
	res, err := s.transformer.Convert(r.Context(), operation.ConvertRequest{
		ProjectID:     req.ProjectID,
		FromDomain:    req.FromDomain,
		ToDomain:      req.ToDomain,
		BaseProjectID: req.BaseProjectID,
		Reporter:      reporter,
	})
	s.finishTask(w, r, taskID, reporter, res, err)
}

func (s *Server) handleGenerateBackend(w http.ResponseWriter, r *http.Request) {
	var req GenerateBackendRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	taskID, reporter := s.startTask(w, req.taskFields)

	projectID := req.ProjectID
	if projectID == "" && req.FrontendRepoURL != "" {
		reporter.Report(r.Context(), "Cloning frontend repository...", 5)
		ws, err := s.cloneProject(r.Context(), req.FrontendRepoURL)
		if err != nil {
			s.finishTask(w, r, taskID, reporter, nil, err)
			return
		}
		projectID = ws.ID
	}
	if projectID == "" {
		s.finishTask(w, r, taskID, reporter, nil, errors.Errorf("%w: projectId or frontendRepoUrl is required", ErrBadRequest))
		return
	}

	res, err := s.transformer.GenerateBackend(r.Context(), operation.GenerateBackendRequest{
		ProjectID:    projectID,
		TargetDomain: req.TargetDomain,
		Reporter:     reporter,
	})
	s.finishTask(w, r, taskID, reporter, res, err)
}

func (s *Server) handleGenerateBase(w http.ResponseWriter, r *http.Request) {
	var req GenerateBaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	taskID, reporter := s.startTask(w, req.taskFields)
	res, err := s.transformer.GenerateBase(r.Context(), operation.GenerateBaseRequest{
		Domain:   req.Domain,
		Reporter: reporter,
	})
	s.finishTask(w, r, taskID, reporter, res, err)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	evt, ok := s.sink.Query(taskID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Type:        ErrorTypeNotFound,
			Code:        "task_not_found",
			Title:       "Task not found",
			Description: "No progress has been recorded for that task id.",
			TaskID:      taskID,
		})
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// startTask resolves the task id, echoes it before any work starts and binds a reporter
func (s *Server) startTask(w http.ResponseWriter, f taskFields) (string, progress.Reporter) {
	taskID := strings.TrimSpace(f.TaskID)
	if taskID == "" {
		taskID = uuid.NewString()
	}
	w.Header().Set(TaskIDHeader, taskID)
	return taskID, s.sink.Reporter(taskID, strings.TrimSpace(f.ConnectionID))
}

// finishTask writes the response. A failure is also recorded as the task's final event.
func (s *Server) finishTask(w http.ResponseWriter, r *http.Request, taskID string, reporter progress.Reporter, res *operation.Result, err error) {
	if err != nil {
		_, resp := CategorizeError(err)
		reporter.Report(r.Context(), "Failed: "+resp.Title, 100)
		s.writeError(w, r, taskID, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{
		TaskID:    taskID,
		ProjectID: res.ProjectID,
		Folders:   nonNil(res.Folders),
		Files:     nonNil(res.Files),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, taskID string, err error) {
	status, resp := CategorizeError(err)
	resp.TaskID = taskID

	logger := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("task_id", taskID).Str("code", resp.Code).Msg("request failed")
	} else {
		logger.Warn().Err(err).Str("task_id", taskID).Str("code", resp.Code).Msg("request rejected")
	}

	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Errorf("%w: decoding body: %s", ErrBadRequest, err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
