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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateLookup(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	reg := NewRegistry(WithRegistryClock(func() time.Time { return ts }))

	id := reg.Create("/tmp/ws-1", []string{"src", "docs"})

	ws, ok := reg.Lookup(id)
	require.True(t, ok, "created workspace should be found")
	assert.Equal(t, Workspace{ID: id, Root: "/tmp/ws-1", Folders: []string{"src", "docs"}, CreatedAt: ts}, ws)
}

func TestRegistryLookupReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("/tmp/ws", []string{"a"})

	ws, _ := reg.Lookup(id)
	ws.Folders[0] = "mutated"

	again, _ := reg.Lookup(id)
	assert.Equal(t, []string{"a"}, again.Folders, "callers must not mutate registry state")
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("/tmp/ws", nil)

	reg.Remove(id)

	_, ok := reg.Lookup(id)
	assert.False(t, ok, "removed workspace should not be found")
	assert.NotPanics(t, func() { reg.Remove(id) }, "removing twice is a no-op")
}

func TestRegistryUpdate(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("/tmp/ws", []string{"a"})

	assert.True(t, reg.Update(id, []string{"a", "b"}))
	assert.False(t, reg.Update("missing", nil))

	ws, _ := reg.Lookup(id)
	assert.Equal(t, []string{"a", "b"}, ws.Folders)
}

func TestRegistryCreateRetriesCollidingIDs(t *testing.T) {
	ids := []string{"same", "same", "other"}
	i := 0
	reg := NewRegistry(WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))

	first := reg.Create("/a", nil)
	second := reg.Create("/b", nil)

	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry()
	const n = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := reg.Create(fmt.Sprintf("/tmp/ws-%d", i), nil)
			_, _ = reg.Lookup(id)

			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, n, "every caller should get a distinct identifier")
	assert.Len(t, reg.List(), n)
}

func TestRegistryReap(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now.Add(-3 * time.Hour)
	reg := NewRegistry(WithRegistryClock(func() time.Time { return current }))

	old := reg.Create("/old", nil)
	current = now
	fresh := reg.Create("/fresh", nil)

	reaped := reg.Reap(now.Add(-time.Hour))

	require.Len(t, reaped, 1)
	assert.Equal(t, old, reaped[0].ID)
	assert.Equal(t, "/old", reaped[0].Root)
	_, ok := reg.Lookup(fresh)
	assert.True(t, ok)
}

func TestRegistryReapUsesLastUpdate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now.Add(-3 * time.Hour)
	reg := NewRegistry(WithRegistryClock(func() time.Time { return current }))

	touched := reg.Create("/touched", nil)
	updated := reg.Create("/updated", nil)
	stale := reg.Create("/stale", nil)

	current = now
	require.True(t, reg.Touch(touched))
	require.True(t, reg.Update(updated, []string{"src"}))
	assert.False(t, reg.Touch("missing"))

	reaped := reg.Reap(now.Add(-time.Hour))

	require.Len(t, reaped, 1)
	assert.Equal(t, stale, reaped[0].ID)

	ws, ok := reg.Lookup(touched)
	require.True(t, ok)
	assert.Equal(t, now.Add(-3*time.Hour), ws.CreatedAt, "touch keeps the creation time")
	assert.Equal(t, now, ws.UpdatedAt)
}

func TestRegistryTakeIsExclusive(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("/project", nil)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ws, ok := reg.Take(id); ok {
				assert.Equal(t, "/project", ws.Root)
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one caller takes the workspace")
	_, ok := reg.Lookup(id)
	assert.False(t, ok)
}
