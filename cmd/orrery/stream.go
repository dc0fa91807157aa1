package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	defaultStreamRate = rate.Limit(10)
	sendBuffer        = 16
	writeWait         = 5 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxControlSize    = 1 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// control is a message sent by a renderer to drive the simulation.
type control struct {
	Speed *float64 `json:"speed,omitempty"`
	Water *bool    `json:"water,omitempty"`
}

// hub broadcasts the frames to the websocket clients, at most at the stream rate.
// A slow client misses frames rather than slowing down the tick.
type hub struct {
	engine *orrery.Engine
	limit  *rate.Limiter
	logger log.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
}

func newHub(e *orrery.Engine, r rate.Limit, logger log.Logger) *hub {
	return &hub{
		engine:  e,
		limit:   rate.NewLimiter(r, 1),
		logger:  log.With(logger, "subsys", "stream"),
		clients: make(map[chan []byte]struct{}),
	}
}

func (h *hub) publish(f orrery.Frame) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 || !h.limit.Allow() {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		level.Error(h.logger).Log("msg", "frame encoding failed", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c <- data:
		default:
		}
	}
}

func (h *hub) register() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := make(chan []byte, sendBuffer)
	h.clients[c] = struct{}{}
	return c, true
}

func (h *hub) unregister(c chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c)
	}
}

// close disconnects every client.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c)
	}
}

// ServeHTTP upgrades the connection and streams frames until either side closes.
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(h.logger).Log("msg", "upgrade failed", "err", err)
		return
	}
	send, ok := h.register()
	if !ok {
		conn.Close()
		return
	}
	level.Debug(h.logger).Log("msg", "client connected", "remote", r.RemoteAddr)
	go h.writeLoop(conn, send)
	h.readLoop(conn)
	h.unregister(send)
	level.Debug(h.logger).Log("msg", "client disconnected", "remote", r.RemoteAddr)
}

func (h *hub) writeLoop(conn *websocket.Conn, send chan []byte) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		conn.Close()
	}()
	for {
		select {
		case data, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop applies the control messages until the connection fails.
func (h *hub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxControlSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg control
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				level.Warn(h.logger).Log("msg", "read failed", "err", err)
			}
			return
		}
		if msg.Speed != nil {
			if err := h.engine.SetSpeed(*msg.Speed); err != nil {
				level.Warn(h.logger).Log("msg", "speed rejected", "err", err)
			}
		}
		if msg.Water != nil {
			h.engine.SetWaterEffects(*msg.Water)
		}
	}
}
