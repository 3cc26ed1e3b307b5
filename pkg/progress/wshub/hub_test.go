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

package wshub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dialing hub should succeed")
	t.Cleanup(func() { conn.Close() })

	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello), "reading connected frame should succeed")
	require.Equal(t, MessageConnected, hello.Type)
	require.NotEmpty(t, hello.ConnectionID, "connected frame should carry an id")

	return conn, hello.ConnectionID
}

func TestPushDeliversReceiveProgress(t *testing.T) {
	hub := New()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, id := dial(t, srv)

	err := hub.Push(context.Background(), id, "Generating backend code...", 30)
	require.NoError(t, err, "push should succeed")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Frame
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, MessageReceiveProgress, got.Type)
	require.Len(t, got.Arguments, 2)
	assert.Equal(t, "Generating backend code...", got.Arguments[0])
	assert.EqualValues(t, 30, got.Arguments[1], "json numbers decode as float64")
}

func TestPushUnknownSubscriber(t *testing.T) {
	hub := New()

	err := hub.Push(context.Background(), "nobody", "msg", 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubscriberNotFound), "error should be ErrSubscriberNotFound")
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := New()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, id := dial(t, srv)
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond,
		"subscriber should be removed after disconnect")
	assert.Error(t, hub.Push(context.Background(), id, "late", 100))
}

func TestAllowedOrigins(t *testing.T) {
	hub := New(WithAllowedOrigins([]string{"https://app.example"}))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err, "foreign origin should be rejected")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://app.example"}})
	require.NoError(t, err, "listed origin should be accepted")
	conn.Close()
}
