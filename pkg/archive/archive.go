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

// Package archive packs workspace directories for download.
package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📦 Zip writes every regular file under dir to w as a zip archive.
// Entries use slash-separated paths relative to dir in lexical order.
func Zip(ctx context.Context, dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	count := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if err := copyFile(fw, path); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return errors.Errorf("archiving %s: %w", filepath.Base(dir), err)
	}

	if err := zw.Close(); err != nil {
		return errors.Errorf("finishing archive: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Int("files", count).Msg("archived workspace")
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
