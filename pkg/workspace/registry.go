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

package workspace

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"
)

// ErrNotFound is returned for an unknown workspace identifier
var ErrNotFound = errors.Base("workspace not found")

// 📁 Workspace is a project directory tracked by the registry
type Workspace struct {
	ID        string    `json:"projectId"`
	Root      string    `json:"-"`
	Folders   []string  `json:"folders"`
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the last time files were written into the workspace
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithIDGenerator overrides uuid identifiers
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// WithRegistryClock overrides the timestamp source
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// 🗂️ Registry maps workspace identifiers to directories. It never touches the disk.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]Workspace

	newID func() string
	now   func() time.Time
}

// 🏭 NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		workspaces: make(map[string]Workspace),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ➕ Create registers root under a fresh identifier
func (r *Registry) Create(root string, folders []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.workspaces[id]; taken; _, taken = r.workspaces[id] {
		id = r.newID()
	}

	now := r.now()
	r.workspaces[id] = Workspace{
		ID:        id,
		Root:      root,
		Folders:   append([]string(nil), folders...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// 🔍 Lookup returns the workspace registered under id
func (r *Registry) Lookup(id string) (Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return Workspace{}, false
	}
	ws.Folders = append([]string(nil), ws.Folders...)
	return ws, true
}

// 🔄 Update replaces the folder snapshot of an existing workspace and marks it updated
func (r *Registry) Update(id string, folders []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return false
	}
	ws.Folders = append([]string(nil), folders...)
	ws.UpdatedAt = r.now()
	r.workspaces[id] = ws
	return true
}

// 👆 Touch marks id as updated now so Reap keeps it. It reports whether id exists.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return false
	}
	ws.UpdatedAt = r.now()
	r.workspaces[id] = ws
	return true
}

// ➖ Remove drops id. The directory is left for the caller to delete.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
}

// 📤 Take removes id and returns what was registered under it. Of several
// concurrent callers only one gets the workspace.
func (r *Registry) Take(id string) (Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return Workspace{}, false
	}
	delete(r.workspaces, id)
	return ws, true
}

// 🧹 Reap removes and returns every workspace last updated before olderThan
func (r *Registry) Reap(olderThan time.Time) []Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []Workspace
	for id, ws := range r.workspaces {
		if ws.UpdatedAt.Before(olderThan) {
			reaped = append(reaped, ws)
			delete(r.workspaces, id)
		}
	}
	return reaped
}

// 📋 List returns all workspaces ordered by creation time
func (r *Registry) List() []Workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
