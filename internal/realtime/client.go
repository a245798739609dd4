package realtime

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulseboard/backend/internal/models"
)

const (
	// PingInterval and PongWait drive the transport-level keepalive; the
	// application-level heartbeat sweep is separate (see Monitor).
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	writeWait     = 10 * time.Second
	maxMessageLen = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced by middleware on the HTTP surface
	},
}

// SessionKind distinguishes the two room flavors a connection can join.
type SessionKind string

const (
	KindEstimation SessionKind = "estimation"
	KindRetro      SessionKind = "retro"
)

// Client represents a single WebSocket connection bound to a participant.
type Client struct {
	ID            string
	SessionID     uuid.UUID
	ParticipantID int
	Kind          SessionKind

	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
	lastBeat atomic.Int64 // unix nanos of the last heartbeat event
	closed   atomic.Bool
}

// ServeWs upgrades the request and runs the client loop. The client binds
// to a participant via the credential issued at join time; a connection
// that cannot be matched gets a targeted credentials error and is closed.
func ServeWs(hub *Hub, d *Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		credential := c.Query("credential")
		if sessionIDStr == "" || credential == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and credential required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		kind, ok := d.SessionKind(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session expired or deleted"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Kind:      kind,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		client.Touch()

		participant, ok := d.Bind(sessionID, credential, client.ID)
		if !ok {
			// The owning session or participant may have just expired;
			// answer with a credentials error instead of dropping silently.
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(envelope(EventErrored, models.ErrCredentials("connection could not be matched to a participant")))
			_ = conn.Close()
			return
		}
		client.ParticipantID = participant.ID

		hub.Register(client)
		go client.writePump()
		client.readPump(d)
	}
}

func (c *Client) readPump(d *Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		d.HandleDeparture(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageLen)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		if msg.Event == EventDisconnect {
			return
		}
		d.Dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a message to the write pump, dropping it when the buffer is
// full (a stale socket must not stall the room).
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// Touch records an application-level heartbeat.
func (c *Client) Touch() {
	c.lastBeat.Store(time.Now().UnixNano())
}

// LastHeartbeat returns the time of the last heartbeat event.
func (c *Client) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastBeat.Load())
}

// Close tears the transport down once; the read pump then runs the normal
// departure path.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) && c.conn != nil {
		_ = c.conn.Close()
	}
}
