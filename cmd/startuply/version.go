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

package main

import (
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/pterm/pterm"
	"gitlab.com/tozd/go/errors"
)

// version is set at link time with -ldflags "-X main.version=v1.2.3"
var version = ""

// 🏷️ buildInfo identifies the running binary
type buildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Time      string `json:"time,omitempty"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func readBuildInfo() buildInfo {
	b := buildInfo{
		Version:   "dev",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			b.Version = v
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.Revision = s.Value
			case "vcs.time":
				b.Time = s.Value
			case "vcs.modified":
				b.Modified, _ = strconv.ParseBool(s.Value)
			}
		}
	}

	if version != "" {
		b.Version = version
	}
	return b
}

// short is the one-word version reported by the health endpoint, e.g. "dev-1a2b3c4+dirty"
func (b buildInfo) short() string {
	s := b.Version
	if b.Version == "dev" && b.Revision != "" {
		rev := b.Revision
		if len(rev) > 7 {
			rev = rev[:7]
		}
		s += "-" + rev
	}
	if b.Modified {
		s += "+dirty"
	}
	return s
}

// render lays the build info out as a two-column table
func (b buildInfo) render() (string, error) {
	revision := b.Revision
	if revision == "" {
		revision = "unknown"
	}
	if b.Modified {
		revision += " (modified)"
	}

	built := b.Time
	if built == "" {
		built = "unknown"
	}

	out, err := pterm.DefaultTable.WithData(pterm.TableData{
		{"🚀 startuply", b.short()},
		{"revision", revision},
		{"built", built},
		{"go", b.GoVersion},
		{"platform", b.Platform},
	}).Srender()
	if err != nil {
		return "", errors.Errorf("rendering version table: %w", err)
	}
	return out + "\n", nil
}
