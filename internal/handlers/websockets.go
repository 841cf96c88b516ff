package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"rfsentry/internal/engine"
	"rfsentry/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
	sendBuffer       = 16
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"` // "status" | "alert_start" | "alert_clear"
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsAlert is the payload of alert edge frames.
type wsAlert struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name,omitempty"`
	RSSI        int    `json:"rssi,omitempty"`
	Delta       int    `json:"delta,omitempty"`
}

// Upgrader for HTTP -> WebSocket. The daemon binds localhost for a
// single local operator, so origins are not restricted.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans alert edges out to every connected websocket client. It is
// the presentation-facing AlertSink: the fullscreen/audio front-end
// subscribes here and reacts to alert_start/alert_clear frames.
type Hub struct {
	log *logger.Logger

	mu    sync.Mutex
	conns map[chan wsEnvelope]struct{}
}

var _ engine.AlertSink = (*Hub)(nil)

func NewHub(log *logger.Logger) *Hub {
	return &Hub{log: log, conns: make(map[chan wsEnvelope]struct{})}
}

// OnAlertStart pushes an alert edge to all clients. Fires once per
// transition; the engine guarantees no duplicates.
func (hub *Hub) OnAlertStart(deviceID, displayName string, rssi, delta int) {
	hub.broadcast(wsEnvelope{Type: "alert_start", Data: wsAlert{
		DeviceID:    deviceID,
		DisplayName: displayName,
		RSSI:        rssi,
		Delta:       delta,
	}})
}

func (hub *Hub) OnAlertClear(deviceID string) {
	hub.broadcast(wsEnvelope{Type: "alert_clear", Data: wsAlert{DeviceID: deviceID}})
}

// broadcast never blocks the caller: a slow client loses frames instead
// of stalling the engine's sink path.
func (hub *Hub) broadcast(env wsEnvelope) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range hub.conns {
		select {
		case ch <- env:
		default:
			if hub.log != nil {
				hub.log.Debugw("ws_client_lagging_frame_dropped", "type", env.Type)
			}
		}
	}
}

func (hub *Hub) register() chan wsEnvelope {
	ch := make(chan wsEnvelope, sendBuffer)
	hub.mu.Lock()
	hub.conns[ch] = struct{}{}
	hub.mu.Unlock()
	return ch
}

func (hub *Hub) unregister(ch chan wsEnvelope) {
	hub.mu.Lock()
	delete(hub.conns, ch)
	hub.mu.Unlock()
}

func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	var alerts chan wsEnvelope
	if h.hub != nil {
		alerts = h.hub.register()
		defer h.hub.unregister(alerts)
	}

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	// Send initial status immediately.
	if err := h.sendStatus(c, conn); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case env := <-alerts:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_alert_write_failed", "err", err)
				}
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendStatus(c, conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// Helper: sendStatus writes the current sentry snapshot with a write deadline.
func (h *Handler) sendStatus(c *gin.Context, conn *websocket.Conn) error {
	st := h.services.Monitoring.Status(c.Request.Context())
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "status", Data: st})
}
