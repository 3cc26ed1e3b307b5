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
	"fmt"

	"github.com/pterm/pterm"
)

// 📢 console prints operator-facing status lines
type console struct {
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
}

func newConsole() *console {
	return &console{
		info:    pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"}),
		success: pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}),
		warning: pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}),
		failure: pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}),
	}
}

// Info prints a progress line
func (c *console) Info(format string, args ...any) {
	c.info.Println(fmt.Sprintf(format, args...))
}

// Success prints a completed step
func (c *console) Success(format string, args ...any) {
	c.success.Println(fmt.Sprintf(format, args...))
}

// Warning prints a recoverable problem
func (c *console) Warning(format string, args ...any) {
	c.warning.Println(fmt.Sprintf(format, args...))
}

// Failure prints description followed by err
func (c *console) Failure(description string, err error) {
	c.failure.Println(description)
	if err != nil {
		pterm.Error.Println(err)
	}
}
