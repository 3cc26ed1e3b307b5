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
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "github.com/walteh/startuply/pkg/provider/github"
)

// rootOpts holds the flags shared by every command
type rootOpts struct {
	configFile string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx = bootstrap.WithContext(ctx)

	out := newConsole()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		out.Failure("Command failed", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd creates the startuply command tree
func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:   "startuply",
		Short: "Transform software projects with a language model",
		Long: `startuply serves an HTTP API that clones repositories, converts projects
between frameworks, generates backends for frontends and scaffolds new projects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (.yaml, .json or .hcl)")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := readBuildInfo()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out, err := info.render()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")

	return cmd
}
