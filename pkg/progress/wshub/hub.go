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

// Package wshub delivers progress messages to websocket subscribers.
package wshub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	// MessageReceiveProgress names the frame carrying a progress update
	MessageReceiveProgress = "ReceiveProgress"
	// MessageConnected names the first frame, which carries the subscriber id
	MessageConnected = "Connected"

	writeWait = 10 * time.Second
)

// ErrSubscriberNotFound is returned when pushing to an unknown or closed connection
var ErrSubscriberNotFound = errors.Base("subscriber not found")

// 📨 Frame is the JSON envelope written to subscribers
type Frame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId,omitempty"`
	Arguments    []any  `json:"arguments,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

func (s *subscriber) write(ctx context.Context, f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Errorf("setting write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(f); err != nil {
		return errors.Errorf("writing frame: %w", err)
	}
	return nil
}

// 📡 Hub tracks websocket subscribers by connection id
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]*subscriber
}

// Option configures a Hub
type Option func(*Hub)

// WithAllowedOrigins restricts upgrades to requests whose Origin is listed.
// Requests without an Origin header are always accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

// 🏭 New creates an empty hub
func New(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// 🔌 ServeHTTP upgrades the request, announces the subscriber id and keeps the
// connection registered until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		conn.Close()
		logger.Debug().Str("subscriber_id", id).Msg("progress subscriber disconnected")
	}()

	if err := sub.write(r.Context(), Frame{Type: MessageConnected, ConnectionID: id}); err != nil {
		logger.Debug().Err(err).Msg("announcing subscriber id")
		return
	}
	logger.Debug().Str("subscriber_id", id).Msg("progress subscriber connected")

	// inbound frames are ignored; reading is what notices a closed connection
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// 📤 Push sends a ReceiveProgress frame to the subscriber
func (h *Hub) Push(ctx context.Context, subscriberID string, message string, percentage int) error {
	h.mu.RLock()
	sub, ok := h.subs[subscriberID]
	h.mu.RUnlock()
	if !ok {
		return errors.WithDetails(ErrSubscriberNotFound, "subscriber_id", subscriberID)
	}

	return sub.write(ctx, Frame{
		Type:      MessageReceiveProgress,
		Arguments: []any{message, percentage},
	})
}

// Len returns the number of connected subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
