/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rangekit/provisioner/pkg/execbridge"
	"github.com/rangekit/provisioner/pkg/lifecycle"
	"github.com/rangekit/provisioner/pkg/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The platform frontend is served from a different origin than the
	// provisioner; the exec grant is the authorization boundary.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ExecInstance handles GET /api/v1/instance/{instanceId}/exec/{container}
// and upgrades the connection to a websocket carrying an interactive
// terminal session
// @Summary Open an exec session into an instance container
// @Param instanceId path string true "Instance ID"
// @Param container path string true "Container name"
// @Success 101
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /instance/{instanceId}/exec/{container} [get]
func (h *Handler) ExecInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceId")
	container := chi.URLParam(r, "container")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	ws := &wsStream{conn: conn}
	err = h.bridge.Open(r.Context(), id, container, execbridge.SessionOptions{TTY: true}, orchestrator.ExecStreams{
		Stdin:  ws,
		Stdout: ws,
		Stderr: ws,
	})
	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrUnknownInstance),
		errors.Is(err, lifecycle.ErrNotRunning),
		errors.Is(err, lifecycle.ErrExecForbidden):
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), closeDeadline())
		return
	default:
		h.log.Error(err, "exec session ended abnormally", "instance", id, "container", container)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
}

func closeDeadline() time.Time { return time.Now().Add(time.Second) }

// wsStream adapts a websocket connection to the byte streams the exec
// subresource expects: reads drain binary/text frames in order, writes emit
// one binary frame per call.
type wsStream struct {
	conn *websocket.Conn

	mu  sync.Mutex // guards writes; gorilla allows one concurrent writer
	buf []byte
}

func (s *wsStream) Read(p []byte) (int, error) {
	for len(s.buf) == 0 {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		s.buf = data
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
