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

package provider

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrUnsafeArchive is returned when an archive entry would land outside the destination
var ErrUnsafeArchive = errors.Base("archive entry escapes destination")

// 📦 ExtractTarball unpacks a gzipped tarball into dest, dropping the first path
// component of every entry (the `<owner>-<repo>-<sha>/` prefix of host archives).
// Only regular files and directories are extracted.
func ExtractTarball(ctx context.Context, r io.Reader, dest string) (int, error) {
	logger := zerolog.Ctx(ctx)

	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return 0, errors.New("invalid archive format - expected gzip data")
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return 0, errors.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, errors.Errorf("extracting archive: %w", err)
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.Errorf("reading archive: %w", err)
		}

		rel, ok := stripFirstComponent(hdr.Name)
		if !ok {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return count, errors.WithDetails(ErrUnsafeArchive, "entry", hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, errors.Errorf("creating directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return count, errors.Errorf("writing %s: %w", rel, err)
			}
			count++
		default:
			logger.Debug().Str("entry", hdr.Name).Int("type", int(hdr.Typeflag)).Msg("skipping archive entry")
		}
	}
	return count, nil
}

func stripFirstComponent(name string) (string, bool) {
	if path.IsAbs(name) {
		return name, true
	}
	_, rest, ok := strings.Cut(strings.TrimPrefix(name, "./"), "/")
	rest = strings.TrimSuffix(rest, "/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
