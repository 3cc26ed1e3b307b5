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
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/startuply/pkg/fileset"
	"gitlab.com/tozd/go/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestNewRootIsUnique(t *testing.T) {
	base := t.TempDir()

	a, err := NewRoot(base, "generated")
	require.NoError(t, err)
	b, err := NewRoot(base, "generated")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "roots must never be reused")
	assert.DirExists(t, a)
	assert.DirExists(t, b)
}

func TestMaterialize(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"existing.txt": "old",
		"same.txt":     "same",
	})

	files := fileset.New()
	files.Set("src/deep/nested/app.py", "print(\"hi\")\n")
	files.Set("existing.txt", "new")
	files.Set("same.txt", "same")

	changes, err := Materialize(ctx, root, files)
	require.NoError(t, err)

	assert.Equal(t, []FileChange{
		{Path: "src/deep/nested/app.py", Status: StatusNew},
		{Path: "existing.txt", Status: StatusModified},
		{Path: "same.txt", Status: StatusUnchanged},
	}, changes)

	data, err := os.ReadFile(filepath.Join(root, "src", "deep", "nested", "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(\"hi\")\n", string(data))

	data, err = os.ReadFile(filepath.Join(root, "existing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data), "existing files are overwritten")

	tree, err := Tree(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"existing.txt", "same.txt", "src/deep/nested/app.py"}, tree, "no temp files left behind")
}

func TestMaterializeKeepsFilesNamedLikeTempFiles(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	root := t.TempDir()

	files := fileset.New()
	files.Set("config.yml.tmp", "scratch: true\n")
	files.Set("config.yml", "real: true\n")

	_, err := Materialize(ctx, root, files)
	require.NoError(t, err)

	for p, want := range map[string]string{
		"config.yml.tmp": "scratch: true\n",
		"config.yml":     "real: true\n",
	} {
		data, err := os.ReadFile(filepath.Join(root, p))
		require.NoError(t, err, "file %s", p)
		assert.Equal(t, want, string(data), "file %s", p)
	}

	tree, err := Tree(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"config.yml", "config.yml.tmp"}, tree, "no temp files left behind")
}

func TestMaterializeConcurrentWritesToSamePath(t *testing.T) {
	root := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			files := fileset.New()
			files.Set("shared.txt", strings.Repeat("x", i+1))
			_, errs[i] = Materialize(context.Background(), root, files)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}
	tree, err := Tree(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared.txt"}, tree)
}

func TestMaterializeMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "reaped")

	files := fileset.New()
	files.Set("a.txt", "a")

	_, err := Materialize(context.Background(), root, files)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.NoDirExists(t, root)
}

func TestMaterializeRejectsUnsafePaths(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent_escape", "../outside.txt"},
		{"nested_escape", "a/../../outside.txt"},
		{"absolute", "/etc/passwd"},
		{"dot", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			files := fileset.New()
			files.Set("ok.txt", "fine")
			files.Set(tt.path, "bad")

			_, err := Materialize(context.Background(), root, files)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafePath), "error should be ErrUnsafePath")
			tree, err := Tree(root)
			require.NoError(t, err)
			assert.Empty(t, tree, "nothing is written when any path is unsafe")
		})
	}
}

func TestTopLevelFolders(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.go":       "",
		"docs/readme.md": "",
		".git/HEAD":      "",
		"root.txt":       "",
	})

	folders, err := TopLevelFolders(root)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src", "docs"}, folders)
}

func TestReadSources(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/App.jsx":                 "export default App",
		"src/util/helpers.ts":         "export {}",
		"src/styles.css":              "body {}",
		"node_modules/react/index.js": "module.exports = {}",
		".git/config":                 "[core]",
		"package.json":                "{}",
	})

	files, err := ReadSources(root, []string{"**/*.{js,jsx,ts,tsx}", "package.json"})
	require.NoError(t, err)

	assert.Equal(t, []string{"package.json", "src/App.jsx", "src/util/helpers.ts"}, files.Paths())
	content, ok := files.Get("src/App.jsx")
	require.True(t, ok)
	assert.Equal(t, "export default App", content)
}

func TestReadSourcesInvalidPattern(t *testing.T) {
	_, err := ReadSources(t.TempDir(), []string{"[unclosed"})
	assert.Error(t, err)
}

func TestDestroy(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	writeTree(t, root, map[string]string{"a/b.txt": "x"})

	require.NoError(t, Destroy(root))

	assert.NoDirExists(t, root)
}
