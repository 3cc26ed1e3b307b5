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
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/fileset"
	"gitlab.com/tozd/go/errors"
)

// ErrUnsafePath is returned for a file path that is absolute or leaves the workspace root
var ErrUnsafePath = errors.Base("unsafe file path")

// skipDirs are never read as project sources
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"bin":          true,
	"obj":          true,
	"dist":         true,
	"vendor":       true,
}

// 📊 FileStatus is the effect a write had on disk
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusNew                  // File did not exist
	StatusModified             // File existed with different content
	StatusUnchanged            // File existed with identical content
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// 📄 FileChange reports one materialized file
type FileChange struct {
	Path   string
	Status FileStatus
}

// 🏗️ NewRoot creates a fresh, uniquely named directory under baseDir
func NewRoot(baseDir, prefix string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", errors.Errorf("creating base directory: %w", err)
	}
	root, err := os.MkdirTemp(baseDir, prefix+"-")
	if err != nil {
		return "", errors.Errorf("creating workspace directory: %w", err)
	}
	return root, nil
}

// 🔒 ValidatePaths checks that every path in files stays inside a workspace root
func ValidatePaths(files *fileset.FileSet) error {
	return files.Each(func(p, _ string) error {
		return validatePath(p)
	})
}

func validatePath(p string) error {
	if p == "" || strings.ContainsRune(p, 0) {
		return errors.WithDetails(ErrUnsafePath, "path", p)
	}
	slashed := filepath.ToSlash(p)
	if path.IsAbs(slashed) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return errors.WithDetails(ErrUnsafePath, "path", p)
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.WithDetails(ErrUnsafePath, "path", p)
	}
	return nil
}

// 💾 Materialize writes every file under root, creating parent directories and
// overwriting existing files. Paths are validated before anything is written.
func Materialize(ctx context.Context, root string, files *fileset.FileSet) ([]FileChange, error) {
	logger := zerolog.Ctx(ctx)

	if err := ValidatePaths(files); err != nil {
		return nil, err
	}

	// a reaped root must not be recreated behind the registry's back
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.WithDetails(ErrNotFound, "root", root)
	}

	changes := make([]FileChange, 0, files.Len())
	err := files.Each(func(p, content string) error {
		abs := filepath.Join(root, filepath.FromSlash(path.Clean(filepath.ToSlash(p))))

		st := StatusNew
		if existing, err := os.ReadFile(abs); err == nil {
			st = StatusModified
			if bytes.Equal(existing, []byte(content)) {
				st = StatusUnchanged
			}
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return errors.Errorf("creating parent directories for %s: %w", p, err)
		}
		if err := writeFileAtomic(abs, []byte(content)); err != nil {
			return errors.Errorf("writing %s: %w", p, err)
		}

		logger.Debug().Str("path", p).Str("status", st.String()).Msg("materialized file")
		changes = append(changes, FileChange{Path: p, Status: st})
		return nil
	})
	if err != nil {
		return changes, err
	}
	return changes, nil
}

// writeFileAtomic writes through a uniquely named hidden temp file in the same
// directory, so no other path of the workspace is ever used as scratch space
func writeFileAtomic(absPath string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".*")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return errors.Errorf("setting temp file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, absPath); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// 📂 TopLevelFolders lists the directory names directly under root
func TopLevelFolders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Errorf("reading workspace root: %w", err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			folders = append(folders, e.Name())
		}
	}
	return folders, nil
}

// 🌲 Tree lists every regular file under root as a sorted slash-separated relative path
func Tree(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking workspace: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// 🔎 ReadSources loads every file under root matching one of the doublestar
// patterns. Dependency and VCS directories are skipped.
func ReadSources(root string, patterns []string) (*fileset.FileSet, error) {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, errors.Errorf("invalid source pattern %q", pat)
		}
	}

	files := fileset.New()
	paths, err := Tree(root)
	if err != nil {
		return nil, err
	}

	for _, rel := range paths {
		if inSkippedDir(rel) || !matchesAny(patterns, rel) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, errors.Errorf("reading source %s: %w", rel, err)
		}
		files.Set(rel, string(data))
	}
	return files, nil
}

func inSkippedDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if skipDirs[dir] {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// 🗑️ Destroy deletes a workspace directory
func Destroy(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return errors.Errorf("removing workspace directory: %w", err)
	}
	return nil
}
