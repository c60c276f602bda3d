package hub

import (
	"errors"
	"sync"
	"time"

	"collaborative-workspace/internal/observability"
	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/protocol"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one channel connection. workspaceID and documentID are guarded
// by the hub's mutex.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user presence.User

	// send is never closed; done tells the write pump to stop.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter

	workspaceID string
	documentID  string
}

func (h *Hub) newClient(conn *websocket.Conn, user presence.User) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		user:    user,
		send:    make(chan []byte, h.opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.opts.RateLimit), h.opts.RateBurst),
	}
}

// enqueue never blocks. Frames for a client whose buffer is full are dropped.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.hub.metrics.DroppedMessagesTotal.Inc()
		c.hub.log.Warn().Str("user", c.user.ID).Msg("send buffer full, dropping frame")
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Serve runs the connection until it closes. It blocks.
func (c *Client) Serve() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(c.hub.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Debug().Err(err).Str("user", c.user.ID).Msg("read error")
			}
			return
		}
		c.hub.HandleFrame(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.log.Debug().Err(err).Str("user", c.user.ID).Msg("write error")
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// HandleFrame decodes one inbound frame and dispatches it. Bad frames are
// counted and dropped; the connection stays open.
func (h *Hub) HandleFrame(c *Client, data []byte) {
	if !c.limiter.Allow() {
		h.metrics.RejectedEventsTotal.WithLabelValues("rate_limited").Inc()
		return
	}

	ev, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownEvent) {
			reason = "unknown"
		}
		h.metrics.RejectedEventsTotal.WithLabelValues(reason).Inc()
		h.log.Debug().Err(err).Str("user", c.user.ID).Msg("dropping frame")
		return
	}
	if err := h.validate.Struct(ev); err != nil {
		h.metrics.RejectedEventsTotal.WithLabelValues("invalid").Inc()
		h.log.Debug().Err(err).Str("user", c.user.ID).Str("event", string(ev.EventType())).Msg("dropping invalid event")
		return
	}

	h.metrics.EventsTotal.WithLabelValues(string(ev.EventType()), observability.Inbound).Inc()
	h.dispatch(c, ev)
}
