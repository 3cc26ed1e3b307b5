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

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// 📊 Event is the latest known status of a task
type Event struct {
	Message    string    `json:"message"`
	Percentage int       `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// 📈 Reporter receives progress from pipeline stages
type Reporter interface {
	Report(ctx context.Context, message string, percentage int)
}

// ReporterFunc adapts a function to the Reporter interface
type ReporterFunc func(ctx context.Context, message string, percentage int)

func (f ReporterFunc) Report(ctx context.Context, message string, percentage int) {
	f(ctx, message, percentage)
}

// Discard drops every report
var Discard Reporter = ReporterFunc(func(context.Context, string, int) {})

// 📡 Pusher delivers a progress message to a push subscriber
type Pusher interface {
	Push(ctx context.Context, subscriberID string, message string, percentage int) error
}

// Option configures a Sink
type Option func(*Sink)

// WithPusher sets the push transport used for subscribed tasks
func WithPusher(p Pusher) Option {
	return func(s *Sink) {
		s.pusher = p
	}
}

// WithPushTimeout bounds how long a single push may take
func WithPushTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.pushTimeout = d
	}
}

// WithQueueSize bounds how many undelivered pushes a subscriber may have
func WithQueueSize(n int) Option {
	return func(s *Sink) {
		s.queueSize = n
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		s.now = now
	}
}

// 🗃️ Sink keeps the most recent event per task and forwards events to push subscribers
type Sink struct {
	mu     sync.RWMutex
	events map[string]Event

	pusher      Pusher
	pushTimeout time.Duration
	queueSize   int
	now         func() time.Time

	qmu    sync.Mutex
	queues map[string]chan delivery
}

// delivery is one pending push for a subscriber
type delivery struct {
	ctx        context.Context
	message    string
	percentage int
}

// 🏭 New creates an empty sink
func New(opts ...Option) *Sink {
	s := &Sink{
		events:      make(map[string]Event),
		pushTimeout: 5 * time.Second,
		queueSize:   64,
		now:         time.Now,
		queues:      make(map[string]chan delivery),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queueSize < 1 {
		s.queueSize = 1
	}
	return s
}

// 📝 Record overwrites the stored event for taskID and, when subscriberID is set,
// queues the same message for push. Pushes to one subscriber are delivered in
// Record order by a single worker; when its queue is full the message is dropped.
// Push failures are only logged.
func (s *Sink) Record(ctx context.Context, taskID, subscriberID, message string, percentage int) {
	ev := Event{
		Message:    message,
		Percentage: percentage,
		Timestamp:  s.now(),
	}

	s.mu.Lock()
	s.events[taskID] = ev
	s.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("task_id", taskID).
		Int("percentage", percentage).
		Msg(message)

	if subscriberID == "" || s.pusher == nil {
		return
	}

	// detached so a finished request does not cancel its last notifications
	d := delivery{ctx: context.WithoutCancel(ctx), message: message, percentage: percentage}

	s.qmu.Lock()
	defer s.qmu.Unlock()

	q, ok := s.queues[subscriberID]
	if !ok {
		q = make(chan delivery, s.queueSize)
		s.queues[subscriberID] = q
		go s.drain(subscriberID, q)
	}

	select {
	case q <- d:
	default:
		logger.Debug().Str("subscriber_id", subscriberID).Int("percentage", percentage).Msg("progress push queue full, dropping")
	}
}

// drain delivers queued pushes for subscriberID until the queue is empty.
// Sends happen under qmu, so an empty queue seen under qmu stays empty until
// the worker has unregistered itself.
func (s *Sink) drain(subscriberID string, q chan delivery) {
	for {
		select {
		case d := <-q:
			s.push(d.ctx, subscriberID, d.message, d.percentage)
		default:
			s.qmu.Lock()
			if len(q) == 0 {
				delete(s.queues, subscriberID)
				s.qmu.Unlock()
				return
			}
			s.qmu.Unlock()
		}
	}
}

func (s *Sink) push(ctx context.Context, subscriberID, message string, percentage int) {
	logger := zerolog.Ctx(ctx)

	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	if err := s.pusher.Push(pushCtx, subscriberID, message, percentage); err != nil {
		logger.Debug().Err(err).Str("subscriber_id", subscriberID).Msg("progress push failed")
	}
}

// 🔍 Query returns the latest event recorded for taskID
func (s *Sink) Query(taskID string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[taskID]
	return ev, ok
}

// 🎯 Reporter binds a task and optional subscriber to this sink
func (s *Sink) Reporter(taskID, subscriberID string) Reporter {
	return ReporterFunc(func(ctx context.Context, message string, percentage int) {
		s.Record(ctx, taskID, subscriberID, message, percentage)
	})
}

// 🧹 Reap drops every event last updated before olderThan and returns how many were removed
func (s *Sink) Reap(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ev := range s.events {
		if ev.Timestamp.Before(olderThan) {
			delete(s.events, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
