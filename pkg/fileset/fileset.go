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

// 📦 FileSet is an ordered mapping of relative paths to raw file content
type FileSet struct {
	order   []string
	content map[string]string
}

// 🏭 New creates an empty file set
func New() *FileSet {
	return &FileSet{
		content: make(map[string]string),
	}
}

// 📝 Set stores content for path, overwriting any earlier value.
// An overwritten path keeps its original position.
func (f *FileSet) Set(path, content string) {
	if _, ok := f.content[path]; !ok {
		f.order = append(f.order, path)
	}
	f.content[path] = content
}

// 🔍 Get returns the content stored for path
func (f *FileSet) Get(path string) (string, bool) {
	c, ok := f.content[path]
	return c, ok
}

// Len returns the number of files
func (f *FileSet) Len() int {
	return len(f.order)
}

// 📂 Paths returns the paths in insertion order
func (f *FileSet) Paths() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// 🔄 Each calls fn for every file in insertion order, stopping at the first error
func (f *FileSet) Each(fn func(path, content string) error) error {
	for _, p := range f.order {
		if err := fn(p, f.content[p]); err != nil {
			return err
		}
	}
	return nil
}
