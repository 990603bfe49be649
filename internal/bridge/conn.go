package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storymap/pkg/apisession"
	"storymap/pkg/session"
	"storymap/pkg/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// client is one websocket connection. Send queues JSON frames for the
// single writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

// Send implements session.Client. It never blocks.
func (c *client) Send(m session.Message) bool {
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Error("Bridge: failed to encode message", "type", m.Type, "error", err)
		return true
	}
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Bridge: write failed", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// Handler upgrades /api/session/ws requests and binds them to sessions.
type Handler struct {
	Sessions *apisession.Store[session.Session]
	Upgrader websocket.Upgrader
}

// NewHandler returns a handler for the given session registry.
func NewHandler(sessions *apisession.Store[session.Session]) *Handler {
	return &Handler{
		Sessions: sessions,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP serves one websocket. The session id comes from ?sid=; a new one
// is assigned when it is missing or malformed and announced in the hello.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if _, err := uuid.Parse(sid); err != nil {
		sid = uuid.NewString()
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Bridge: upgrade failed", "error", err)
		return
	}

	s, unpin := h.Sessions.Pin(sid)
	defer unpin()

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  slog.With("component", "bridge", "session", sid),
	}
	go c.writePump()
	s.Attach(c)
	c.log.Info("Bridge: client connected", "remote", r.RemoteAddr)

	h.readPump(s, c)

	s.Detach(c)
	c.close()
	c.log.Info("Bridge: client disconnected")
}

func (h *Handler) readPump(s *session.Session, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Bridge: read failed", "error", err)
			}
			return
		}
		typ, cmd, err := Decode(raw)
		if err != nil {
			c.log.Debug("Bridge: bad message", "error", err)
			s.SendError(typ, err)
			continue
		}
		s.Post(func(o *view.Orchestrator) {
			if err := cmd(s, o); err != nil {
				c.log.Debug("Bridge: command failed", "type", typ, "error", err)
				s.SendError(typ, err)
			}
		})
	}
}
