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
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/startuply/pkg/progress"
	"github.com/walteh/startuply/pkg/workspace"
)

// 🧹 reaper expires old workspaces and progress records
type reaper struct {
	registry        *workspace.Registry
	sink            *progress.Sink
	workspaceMaxAge time.Duration
	progressMaxAge  time.Duration
	now             func() time.Time
}

func (r *reaper) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// reap removes expired workspaces with their directories and drops stale
// progress events
func (r *reaper) reap(ctx context.Context) (workspaces int, events int) {
	logger := zerolog.Ctx(ctx)
	now := r.clock()

	expired := r.registry.Reap(now.Add(-r.workspaceMaxAge))
	for _, ws := range expired {
		if err := workspace.Destroy(ws.Root); err != nil {
			logger.Warn().Err(err).Str("workspace_id", ws.ID).Msg("removing expired workspace")
		}
	}

	events = r.sink.Reap(now.Add(-r.progressMaxAge))

	if len(expired) > 0 || events > 0 {
		logger.Info().Int("workspaces", len(expired)).Int("progress_events", events).Msg("reaped expired state")
	}

	return len(expired), events
}

// loop calls reap every interval until ctx is done
func (r *reaper) loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// drain removes every registered workspace, used on shutdown
func (r *reaper) drain(ctx context.Context) int {
	logger := zerolog.Ctx(ctx)

	all := r.registry.List()
	for _, ws := range all {
		r.registry.Remove(ws.ID)
		if err := workspace.Destroy(ws.Root); err != nil {
			logger.Warn().Err(err).Str("workspace_id", ws.ID).Msg("removing workspace on shutdown")
		}
	}

	if len(all) > 0 {
		logger.Info().Int("workspaces", len(all)).Msg("removed workspaces on shutdown")
	}
	return len(all)
}
