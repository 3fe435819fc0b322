package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mediflow/internal/watch"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchWSOutbound struct {
	Type  string      `json:"type"`
	Event watch.Event `json:"event,omitempty"`
}

// handleWatchSession streams stage and session transitions for one session
// over a websocket. The stream ends after the terminal event or when the
// client disconnects.
func (s *Server) handleWatchSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	if s.Hub == nil {
		http.Error(w, "watch is not enabled", http.StatusNotFound)
		return
	}

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	// The client sends nothing meaningful; the read loop only services pongs
	// and detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, unsubscribe := s.Hub.Subscribe(sessionID)
	defer unsubscribe()

	ticker := time.NewTicker(watchWSPingEvery)
	defer ticker.Stop()

	writeOut := func(out watchWSOutbound) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(out) == nil
	}

	if !writeOut(watchWSOutbound{Type: "subscribed", Event: watch.Event{SessionID: sessionID, At: time.Now()}}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !writeOut(watchWSOutbound{Type: "event", Event: ev}) {
				return
			}
			if ev.Terminal {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
