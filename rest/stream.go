// Copyright 2026 The Govisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// fromStart reports whether a stream should replay the retained lines
// before following new ones.
func fromStart(r *http.Request) bool {
	return r.URL.Query().Get("replay") == "true"
}

// streamLogs follows the log as Server-Sent Events.  Every poll that
// finds new lines sends them as a single event, one data field per line.
func (h *Handler) streamLogs(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, &Error{http.StatusInternalServerError, "Unknown", "Streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", mimeSSE)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.m.Log().Subscribe(fromStart(r))
	fmt.Fprint(w, "data: [CONNECTED]\n\n")
	fl.Flush()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		lines := sub.Poll()
		if len(lines) == 0 {
			continue
		}
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n", line)
		}
		if _, e := fmt.Fprint(w, "\n"); e != nil {
			return
		}
		fl.Flush()
	}
}

// socketLogs follows the log over a WebSocket, sending a LogBatch for
// every poll that finds new lines.  Anything the peer sends is
// discarded; reading only serves to notice when it goes away.
func (h *Handler) socketLogs(w http.ResponseWriter, r *http.Request) {
	conn, e := h.upgrader.Upgrade(w, r, nil)
	if e != nil {
		// The upgrader has already answered.
		return
	}
	defer conn.Close()

	sub := h.m.Log().Subscribe(fromStart(r))
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, e := conn.ReadMessage(); e != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(h.poll)
	ping := time.NewTicker(pingPeriod)
	defer poll.Stop()
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if e := conn.WriteMessage(websocket.PingMessage, nil); e != nil {
				return
			}
		case <-poll.C:
			lines := sub.Poll()
			if len(lines) == 0 {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if e := conn.WriteJSON(&LogBatch{Lines: lines}); e != nil {
				return
			}
		}
	}
}
