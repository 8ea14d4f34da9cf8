package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Moszee/generic-sim/internal/engine"
	"github.com/Moszee/generic-sim/internal/tribe"
)

const (
	maxSSEConns = 4
	maxWSConns  = 32

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Clients only send control frames; anything larger is a misbehaving peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigins()[origin]
	},
}

// streamFilter parses the optional ?tribe= query. Zero means all tribes.
func streamFilter(r *http.Request) (tribe.TribeID, error) {
	v := r.URL.Query().Get("tribe")
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid tribe filter %q", v)
	}
	return tribe.TribeID(id), nil
}

// streamClient is one websocket subscriber.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// handleWebSocket streams tick reports as JSON text frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter, err := streamFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	current := atomic.AddInt32(&s.wsConns, 1)
	defer atomic.AddInt32(&s.wsConns, -1)
	if current > maxWSConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	// Subscribe before the upgrade completes so no report is missed once the
	// client sees the handshake.
	subID, reports := s.Sim.Subscribe()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Sim.Unsubscribe(subID)
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, 64)}
	go c.forward(reports, filter)
	go c.writePump()

	slog.Info("stream client connected", "sub_id", subID, "tribe", filter)
	c.readPump()
	s.Sim.Unsubscribe(subID)
	slog.Info("stream client disconnected", "sub_id", subID)
}

// forward encodes matching reports onto the send queue until the
// subscription closes.
func (c *streamClient) forward(reports <-chan *engine.TickReport, filter tribe.TribeID) {
	defer close(c.send)
	for report := range reports {
		if filter != 0 && report.TribeID != filter {
			continue
		}
		data, err := json.Marshal(report)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Debug("stream client behind, dropping report", "tribe", report.TribeID, "tick", report.Tick)
		}
	}
}

// readPump discards client frames and returns when the peer goes away.
func (c *streamClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("stream read error", "error", err)
			}
			return
		}
	}
}

// writePump sends queued reports and keeps the connection alive with pings.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSSE streams tick reports as server-sent events for clients that
// cannot speak websocket.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	filter, err := streamFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	defer atomic.AddInt32(&s.sseConns, -1)
	if current > maxSSEConns {
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Catch-up from the event log when following a single tribe.
	if filter != 0 && s.Events != nil {
		if recent, err := s.Events.RecentEvents(r.Context(), filter, defaultEventLimit); err == nil {
			for i := len(recent) - 1; i >= 0; i-- {
				writeSSE(w, "event", recent[i])
			}
		}
	}
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID, "tribe", filter)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case report, ok := <-ch:
			if !ok {
				return
			}
			if filter != 0 && report.TribeID != filter {
				continue
			}
			writeSSE(w, "tick", report)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSE writes a single value in SSE format.
func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
