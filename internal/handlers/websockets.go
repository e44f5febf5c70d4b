package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"reflow_oven/internal/models"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 250 * time.Millisecond
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	// An unchanged state is still re-sent this often.
	heartbeatEvery = 5 * time.Second
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateStream tracks what the client last saw so unchanged frames are
// skipped.
type stateStream struct {
	last   models.OvenState
	sent   bool
	sentAt time.Time
}

// due reports whether st should be sent at now.
func (s *stateStream) due(st models.OvenState, now time.Time) bool {
	if !s.sent || now.Sub(s.sentAt) >= heartbeatEvery {
		return true
	}
	return !sameFrame(s.last, st)
}

func (s *stateStream) mark(st models.OvenState, now time.Time) {
	s.last, s.sent, s.sentAt = st, true, now
}

// sameFrame compares what a panel shows; UpdatedAt alone changes every render.
func sameFrame(a, b models.OvenState) bool {
	return a.Stage == b.Stage &&
		a.CurrentTempC == b.CurrentTempC &&
		a.SetpointC == b.SetpointC &&
		a.HeaterOn == b.HeaterOn &&
		a.Profile == b.Profile &&
		a.Fault == b.Fault &&
		a.Resume == b.Resume &&
		a.CountdownSeconds == b.CountdownSeconds
}

// @Summary      Status stream
// @Description  WebSocket upgrade. Sends {"type":"state","data":OvenState} whenever the panel changes, at most every interval.
// @Tags         oven
// @Param        interval     query  string  false  "Poll interval, e.g. 500ms (max 10s)"
// @Param        interval_ms  query  int     false  "Poll interval in ms"
// @Router       /ws [get]
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

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	var stream stateStream
	if err := h.sendState(ctx, conn, &stream); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendState(ctx, conn, &stream); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
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
	return defaultInterval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendState writes the current state if the client has not seen it yet.
func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn, stream *stateStream) error {
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	now := time.Now()
	if !stream.due(st, now) {
		return nil
	}
	_ = conn.SetWriteDeadline(now.Add(writeWait))
	if err := conn.WriteJSON(wsEnvelope{Type: "state", Data: st}); err != nil {
		return err
	}
	stream.mark(st, now)
	return nil
}
