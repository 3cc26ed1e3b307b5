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

package operation

import (
	"fmt"

	"github.com/walteh/startuply/pkg/fileset"
)

const formatInstructions = "The input is structured as " + fileset.Delimiter + " relative/path --- followed by content. " +
	"Provide the output in the same format: every file starts on its own line with " + fileset.Delimiter +
	" relative/path --- followed by the complete file content. Do not add commentary between files.\n"

func convertPrompt(from, to string, files *fileset.FileSet) string {
	header := fmt.Sprintf("Convert this %s code to %s. %sConvert the code of every file.\n", from, to, formatInstructions)
	return fileset.Encode(header, files)
}

func backendPrompt(target string, files *fileset.FileSet) string {
	header := fmt.Sprintf("Analyze this frontend code and generate a %s backend. %sOutput only the backend project files.\n", target, formatInstructions)
	return fileset.Encode(header, files)
}

func basePrompt(domain string) string {
	example := fileset.New()
	example.Set("package.json", "{\"name\": \"my-app\"}\n")
	example.Set("src/index.js", "console.log('Hello');\n")

	header := fmt.Sprintf("Generate a basic project structure and starter files for a %s application. "+
		"Provide the output as a list of files with their paths and content, every file starting on its own line with "+
		fileset.Delimiter+" relative/path ---.\nFor example:\n", domain)
	return fileset.Encode(header, example)
}
