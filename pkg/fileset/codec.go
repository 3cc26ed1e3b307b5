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

package fileset

import (
	"strings"
)

const (
	// Delimiter starts every file record. Content is never escaped, so a body
	// containing this token will split into extra records on decode.
	Delimiter = "---FILE:"

	headerSuffix = "---"
)

// 📤 Encode renders header followed by one `---FILE: <path> ---` record per file
func Encode(header string, files *FileSet) string {
	var b strings.Builder
	b.WriteString(header)
	if files == nil {
		return b.String()
	}
	_ = files.Each(func(path, content string) error {
		b.WriteString(Delimiter)
		b.WriteString(" ")
		b.WriteString(path)
		b.WriteString(" ")
		b.WriteString(headerSuffix)
		b.WriteString("\n")
		b.WriteString(content)
		return nil
	})
	return b.String()
}

// 📥 Decode extracts file records from arbitrary model output.
// Text before the first delimiter is ignored, records without a newline or a
// path are dropped, and a repeated path keeps the last content seen.
func Decode(text string) *FileSet {
	files := New()

	segments := strings.Split(text, Delimiter)
	for _, seg := range segments[1:] {
		header, body, ok := strings.Cut(seg, "\n")
		if !ok {
			continue
		}

		path := parseHeader(header)
		if path == "" {
			continue
		}

		files.Set(path, body)
	}

	return files
}

func parseHeader(header string) string {
	path := strings.TrimSpace(header)
	path = strings.TrimSuffix(path, headerSuffix)
	return strings.TrimSpace(path)
}
